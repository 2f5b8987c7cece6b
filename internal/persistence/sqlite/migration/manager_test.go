package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	_ "modernc.org/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func schemaFiles() fstest.MapFS {
	return fstest.MapFS{
		"001_create_users.sql": {Data: []byte(`
-- Description: users
CREATE TABLE users (id TEXT PRIMARY KEY, name TEXT NOT NULL);
CREATE INDEX idx_users_name ON users(name);
`)},
		"002_create_notes.sql": {Data: []byte(`CREATE TABLE notes (id TEXT PRIMARY KEY, user_id TEXT NOT NULL REFERENCES users(id));`)},
	}
}

func TestManager_RunMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := schemaFiles()
	manager := NewManager(NewFileScanner(), NewSQLiteExecutor(db), files, discardLogger())

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, name) VALUES ('u1', 'Alice')`); err != nil {
		t.Fatalf("expected users table to exist: %v", err)
	}

	// A second run is a no-op.
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	files["003_add_column.sql"] = &fstest.MapFile{Data: []byte(`ALTER TABLE users ADD COLUMN email TEXT;`)}
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("incremental RunMigrations failed: %v", err)
	}
	status, err = manager.Status(ctx)
	if err != nil || status.CurrentVersion != "003" {
		t.Fatalf("expected version 003, got %+v %v", status, err)
	}
}

func TestManager_RollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_create_users.sql": {Data: []byte(`CREATE TABLE users (id TEXT PRIMARY KEY);`)},
		"002_broken.sql":       {Data: []byte(`CREATE TABLE notes (id TEXT PRIMARY KEY); INSERT INTO missing_table VALUES (1);`)},
	}
	manager := NewManager(NewFileScanner(), NewSQLiteExecutor(db), files, discardLogger())

	err := manager.RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'notes'`).Scan(&count); err != nil {
		t.Fatalf("failed to inspect schema: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected failed migration to be rolled back")
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "001" || status.PendingCount != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManager_DetectsTampering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := schemaFiles()
	manager := NewManager(NewFileScanner(), NewSQLiteExecutor(db), files, discardLogger())
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	t.Run("changed checksum", func(t *testing.T) {
		changed := schemaFiles()
		changed["002_create_notes.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE notes (id TEXT PRIMARY KEY);`)}
		_, err := NewManager(NewFileScanner(), NewSQLiteExecutor(db), changed, discardLogger()).Status(ctx)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("missing applied file", func(t *testing.T) {
		missing := schemaFiles()
		delete(missing, "002_create_notes.sql")
		_, err := NewManager(NewFileScanner(), NewSQLiteExecutor(db), missing, discardLogger()).Status(ctx)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("gap in sequence", func(t *testing.T) {
		gapped := schemaFiles()
		gapped["004_later.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE later (id TEXT);`)}
		_, err := NewManager(NewFileScanner(), NewSQLiteExecutor(db), gapped, discardLogger()).Status(ctx)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})
}

type failingExecutor struct {
	initErr error
}

func (f failingExecutor) InitializeVersionTable(context.Context) error { return f.initErr }
func (f failingExecutor) ExecuteMigration(context.Context, Migration) (time.Duration, error) {
	return 0, nil
}
func (f failingExecutor) GetAppliedVersions(context.Context) ([]AppliedMigration, error) {
	return nil, nil
}

func TestManager_InitializationFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	manager := NewManager(NewFileScanner(), failingExecutor{initErr: boom}, schemaFiles(), discardLogger())
	if err := manager.RunMigrations(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected init error, got %v", err)
	}
}
