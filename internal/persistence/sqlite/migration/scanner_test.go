package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestFileScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		files         fstest.MapFS
		expectedOrder []string
		expectError   error
		errorContains string
	}{
		{
			name: "sorts migrations numerically",
			files: fstest.MapFS{
				"010_add_indexes.sql":  {Data: []byte("CREATE INDEX idx_users_email ON users(email);")},
				"002_create_leave.sql": {Data: []byte("CREATE TABLE leave_requests (id TEXT PRIMARY KEY);")},
				"001_create_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-SQL files and directories",
			files: fstest.MapFS{
				"001_create_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
				"README.md":            {Data: []byte("# Migrations")},
				"archive/old.sql":      {Data: []byte("DROP TABLE users;")},
			},
			expectedOrder: []string{"001"},
		},
		{
			name:          "empty directory",
			files:         fstest.MapFS{},
			expectedOrder: nil,
		},
		{
			name: "invalid filename format",
			files: fstest.MapFS{
				"invalid_name.sql": {Data: []byte("CREATE TABLE test (id TEXT);")},
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate versions",
			files: fstest.MapFS{
				"001_create_users.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
				"001_create_other.sql": {Data: []byte("CREATE TABLE other (id TEXT PRIMARY KEY);")},
			},
			expectError: ErrDuplicateVersion,
		},
		{
			name: "comment-only file",
			files: fstest.MapFS{
				"001_empty.sql": {Data: []byte("-- nothing to see here\n")},
			},
			expectError: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: fstest.MapFS{
				"001_broken.sql": {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY;")},
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "parenthesis",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			migrations, err := NewFileScanner().ScanMigrations(tt.files)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error to contain %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("ScanMigrations failed: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("expected version %s at %d, got %s", version, i, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("expected checksum for %s", version)
				}
			}
		})
	}
}

func TestFileScanner_Description(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"001_create_users.sql": {Data: []byte("-- Description: accounts and balances\nCREATE TABLE users (id TEXT PRIMARY KEY);")},
		"002_add_index.sql":    {Data: []byte("CREATE INDEX idx ON users(id);")},
	}

	migrations, err := NewFileScanner().ScanMigrations(files)
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if migrations[0].Description != "accounts and balances" {
		t.Fatalf("expected description from comment, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	sql := `
-- users
CREATE TABLE users (id TEXT PRIMARY KEY);

-- trailing comment only
CREATE INDEX idx_users ON users(id); -- inline
`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if !strings.HasPrefix(statements[1], "CREATE INDEX") {
		t.Fatalf("unexpected second statement %q", statements[1])
	}
}
