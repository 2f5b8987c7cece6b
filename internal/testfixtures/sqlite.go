package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/leaveflow/internal/persistence"
	"github.com/example/leaveflow/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// store for integration-style tests.
type SQLiteHarness struct {
	Store *sqlite.Store

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated store in a temporary file. The store is
// closed automatically when the test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "leaveflow.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(ctx, sqlite.Config{DSN: path}, logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: store,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser inserts the fixture as a stored user.
func (h *SQLiteHarness) SeedUser(tb testing.TB, fixture UserFixture) UserFixture {
	tb.Helper()
	if err := h.Store.CreateUser(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("failed to seed user %s: %v", fixture.ID, err)
	}
	return fixture
}

// SeedLeaveRequest inserts the fixture without touching the owner's balance.
func (h *SQLiteHarness) SeedLeaveRequest(tb testing.TB, fixture LeaveRequestFixture) LeaveRequestFixture {
	tb.Helper()
	err := h.Store.WithinTransaction(context.Background(), func(ctx context.Context, tx persistence.LedgerTx) error {
		return tx.InsertLeaveRequest(ctx, fixture.Persistence())
	})
	if err != nil {
		tb.Fatalf("failed to seed leave request %s: %v", fixture.ID, err)
	}
	return fixture
}

// Balance returns the stored balance of userID.
func (h *SQLiteHarness) Balance(tb testing.TB, userID string) int {
	tb.Helper()
	user, err := h.Store.GetUser(context.Background(), userID)
	if err != nil {
		tb.Fatalf("failed to load user %s: %v", userID, err)
	}
	return user.LeaveBalance
}
