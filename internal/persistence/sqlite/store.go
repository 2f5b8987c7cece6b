package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/example/leaveflow/internal/persistence"
	"github.com/example/leaveflow/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories over one connection pool.
type Store struct {
	*UserRepository
	*LeaveRequestRepository
	*SessionRepository

	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	logger *slog.Logger
}

var (
	_ persistence.UserRepository         = (*Store)(nil)
	_ persistence.LeaveRequestRepository = (*Store)(nil)
	_ persistence.SessionRepository      = (*Store)(nil)
	_ persistence.Transactor             = (*Store)(nil)
)

// Open connects to the database described by cfg. Call Migrate before use.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		UserRepository:         NewUserRepository(pool),
		LeaveRequestRepository: NewLeaveRequestRepository(pool),
		SessionRepository:      NewSessionRepository(pool),
		pool:                   pool,
		mapper:                 NewErrorMapper(),
		retry:                  NewRetryHelper(DefaultRetryConfig()),
		logger:                 logger.With("component", "sqlite"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: migrations: %w", err)
	}
	manager := migration.NewManager(migration.NewFileScanner(), migration.NewSQLiteExecutor(s.pool.DB()), files, s.logger)
	return manager.RunMigrations(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// DB exposes the underlying handle for tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.pool.DB()
}

// WithinTransaction runs fn in an IMMEDIATE transaction. Lock contention that
// outlasts the busy timeout is retried before fn runs again from scratch.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx persistence.LedgerTx) error) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return fn(ctx, &ledgerTx{tx: tx, mapper: s.mapper})
		})
	})
}
