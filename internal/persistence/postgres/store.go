// Package postgres implements the persistence contracts on PostgreSQL via GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/leaveflow/internal/persistence"
)

// Config describes the connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

// Store implements every persistence contract over one GORM handle.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var (
	_ persistence.UserRepository         = (*Store)(nil)
	_ persistence.LeaveRequestRepository = (*Store)(nil)
	_ persistence.SessionRepository      = (*Store)(nil)
	_ persistence.Transactor             = (*Store)(nil)
)

// Open connects to PostgreSQL. Call Migrate before use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = gormlogger.Silent
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Store{db: db, logger: logger.With("component", "postgres")}, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userModel{}, &leaveRequestModel{}, &sessionModel{}); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	s.logger.InfoContext(ctx, "schema migrated")
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// mapError translates GORM errors into persistence sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return persistence.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

// ---------------------------------------------------------------- users

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}
	model := toUserModel(user)
	return mapError(s.db.WithContext(ctx).Create(&model).Error)
}

// GetUser loads an account by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return persistence.User{}, mapError(err)
	}
	return fromUserModel(model), nil
}

// GetUserByEmail loads an account by its exact stored email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).First(&model, "email = ?", strings.TrimSpace(email)).Error; err != nil {
		return persistence.User{}, mapError(err)
	}
	return fromUserModel(model), nil
}

// ListUsers returns every account in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var models []userModel
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, mapError(err)
	}
	users := make([]persistence.User, 0, len(models))
	for _, m := range models {
		users = append(users, fromUserModel(m))
	}
	return users, nil
}

// SetLeaveBalance overwrites an account's balance.
func (s *Store) SetLeaveBalance(ctx context.Context, id string, balance int, updatedAt time.Time) (persistence.User, error) {
	var model userModel
	result := s.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Updates(map[string]any{"leave_balance": balance, "updated_at": updatedAt.UTC()})
	if result.Error != nil {
		return persistence.User{}, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.User{}, persistence.ErrNotFound
	}
	return fromUserModel(model), nil
}

// ------------------------------------------------------- leave requests

func leaveQuery(db *gorm.DB, filter persistence.LeaveRequestFilter) *gorm.DB {
	q := db.Joins("Owner")
	if filter.UserID != "" {
		q = q.Where("leave_requests.user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("leave_requests.status = ?", filter.Status)
	}
	if filter.ExcludeStatus != "" {
		q = q.Where("leave_requests.status <> ?", filter.ExcludeStatus)
	}
	if !filter.OverlapsFrom.IsZero() {
		q = q.Where("leave_requests.end_date >= ?", filter.OverlapsFrom)
	}
	if !filter.OverlapsTo.IsZero() {
		q = q.Where("leave_requests.start_date <= ?", filter.OverlapsTo)
	}
	return q.Order("leave_requests.created_at DESC, leave_requests.id DESC")
}

// GetLeaveRequest loads a request joined with its owner.
func (s *Store) GetLeaveRequest(ctx context.Context, id string) (persistence.LeaveRequestWithOwner, error) {
	var model leaveRequestModel
	err := s.db.WithContext(ctx).Joins("Owner").First(&model, "leave_requests.id = ?", id).Error
	if err != nil {
		return persistence.LeaveRequestWithOwner{}, mapError(err)
	}
	return fromLeaveModelWithOwner(model), nil
}

// ListLeaveRequests returns matching requests newest first.
func (s *Store) ListLeaveRequests(ctx context.Context, filter persistence.LeaveRequestFilter) ([]persistence.LeaveRequestWithOwner, error) {
	var models []leaveRequestModel
	if err := leaveQuery(s.db.WithContext(ctx), filter).Find(&models).Error; err != nil {
		return nil, mapError(err)
	}
	out := make([]persistence.LeaveRequestWithOwner, 0, len(models))
	for _, m := range models {
		out = append(out, fromLeaveModelWithOwner(m))
	}
	return out, nil
}

// WithinTransaction runs fn inside one database transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &ledgerTx{db: tx})
	})
}

// ------------------------------------------------------------- sessions

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	if session.ID == "" || session.Token == "" || session.UserID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	model := toSessionModel(session)
	if err := s.db.WithContext(ctx).Omit("Owner").Create(&model).Error; err != nil {
		return persistence.Session{}, mapError(err)
	}
	return fromSessionModel(model), nil
}

// GetSession loads a session by token.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	var model sessionModel
	if err := s.db.WithContext(ctx).First(&model, "token = ?", token).Error; err != nil {
		return persistence.Session{}, mapError(err)
	}
	return fromSessionModel(model), nil
}

// UpdateSession rewrites the mutable fields of the session with the same ID.
func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	input := toSessionModel(session)

	var model sessionModel
	result := s.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"token":       input.Token,
			"fingerprint": strings.TrimSpace(input.Fingerprint),
			"expires_at":  input.ExpiresAt,
			"revoked_at":  input.RevokedAt,
			"updated_at":  input.UpdatedAt,
		})
	if result.Error != nil {
		return persistence.Session{}, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return fromSessionModel(model), nil
}

// RevokeSession marks a session revoked, keeping an earlier revocation time.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	stamp := revokedAt.UTC()

	var model sessionModel
	result := s.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{}).
		Where("token = ?", token).
		Updates(map[string]any{
			"revoked_at": gorm.Expr("COALESCE(revoked_at, ?)", stamp),
			"updated_at": stamp,
		})
	if result.Error != nil {
		return persistence.Session{}, mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return fromSessionModel(model), nil
}

// DeleteExpiredSessions removes sessions that expired at or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapError(s.db.WithContext(ctx).Where("expires_at <= ?", reference.UTC()).Delete(&sessionModel{}).Error)
}
