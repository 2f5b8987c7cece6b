// Package adapter binds the persistence backends to the ports declared by the
// application services, converting records and translating storage errors.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/example/leaveflow/internal/application"
	"github.com/example/leaveflow/internal/persistence"
)

// MapError translates persistence errors into application sentinels.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return application.ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return application.ErrAlreadyExists
	case errors.Is(err, persistence.ErrStateConflict):
		return application.ErrInvalidState
	case errors.Is(err, persistence.ErrInsufficientBalance):
		return application.ErrInsufficientBalance
	default:
		return err
	}
}

// UserRepository adapts a persistence.UserRepository to application.UserRepository.
type UserRepository struct {
	repo persistence.UserRepository
}

// NewUserRepository wraps repo.
func NewUserRepository(repo persistence.UserRepository) *UserRepository {
	return &UserRepository{repo: repo}
}

func (a *UserRepository) CreateUser(ctx context.Context, user application.NewUser) (application.User, error) {
	model := persistence.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		LeaveBalance: user.LeaveBalance,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
	if err := a.repo.CreateUser(ctx, model); err != nil {
		return application.User{}, MapError(err)
	}
	return ToApplicationUser(model), nil
}

func (a *UserRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	model, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, MapError(err)
	}
	return ToApplicationUser(model), nil
}

func (a *UserRepository) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	model, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, MapError(err)
	}
	return ToApplicationUser(model), nil
}

func (a *UserRepository) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, ToApplicationUser(model))
	}
	return users, nil
}

func (a *UserRepository) SetLeaveBalance(ctx context.Context, id string, balance int, updatedAt time.Time) (application.User, error) {
	model, err := a.repo.SetLeaveBalance(ctx, id, balance, updatedAt)
	if err != nil {
		return application.User{}, MapError(err)
	}
	return ToApplicationUser(model), nil
}

// CredentialStore adapts a persistence.UserRepository to application.CredentialStore.
type CredentialStore struct {
	repo persistence.UserRepository
}

// NewCredentialStore wraps repo.
func NewCredentialStore(repo persistence.UserRepository) *CredentialStore {
	return &CredentialStore{repo: repo}
}

func (a *CredentialStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	model, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, MapError(err)
	}
	return application.UserCredentials{
		User:         ToApplicationUser(model),
		PasswordHash: model.PasswordHash,
	}, nil
}

func (a *CredentialStore) GetUser(ctx context.Context, id string) (application.User, error) {
	model, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, MapError(err)
	}
	return ToApplicationUser(model), nil
}

// SessionRepository adapts a persistence.SessionRepository to application.SessionRepository.
type SessionRepository struct {
	repo persistence.SessionRepository
}

// NewSessionRepository wraps repo.
func NewSessionRepository(repo persistence.SessionRepository) *SessionRepository {
	return &SessionRepository{repo: repo}
}

func (a *SessionRepository) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, MapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, MapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, MapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, MapError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return MapError(a.repo.DeleteExpiredSessions(ctx, reference))
}

// ToApplicationUser converts a stored user to its application form.
func ToApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:           model.ID,
		Name:         model.Name,
		Email:        model.Email,
		Role:         application.Role(model.Role),
		LeaveBalance: model.LeaveBalance,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
