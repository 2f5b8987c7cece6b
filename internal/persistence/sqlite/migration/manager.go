package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// Manager orchestrates scanning, validation and execution of migrations.
type Manager struct {
	scanner  FileScanner
	executor Executor
	files    fs.FS
	logger   *slog.Logger
}

// NewManager creates a Manager reading migrations from files.
func NewManager(scanner FileScanner, executor Executor, files fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		files:    files,
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *Manager) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if status.PendingCount == 0 {
		m.logger.DebugContext(ctx, "database schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", status.PendingCount,
	)

	for i, migration := range status.PendingMigrations {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"position", fmt.Sprintf("%d/%d", i+1, status.PendingCount),
			"elapsed", elapsed,
		)
	}

	m.logger.InfoContext(ctx, "migrations completed",
		"count", status.PendingCount,
		"elapsed", time.Since(startTime),
	)
	return nil
}

// Status compares the migration files with the versions recorded in the
// database. Applied migrations whose files vanished or changed are reported
// as errors.
func (m *Manager) Status(ctx context.Context) (*MigrationStatus, error) {
	available, err := m.scanner.ScanMigrations(m.files)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	current := ""
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
		if current == "" || versionNumber(a.Version) > versionNumber(current) {
			current = a.Version
		}
	}

	status := &MigrationStatus{
		CurrentVersion:    current,
		AppliedMigrations: applied,
	}
	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; ok {
			continue
		}
		status.PendingMigrations = append(status.PendingMigrations, migration)
	}
	status.PendingCount = len(status.PendingMigrations)

	return status, nil
}

// validateSequence ensures available versions are gapless and every applied
// version still has an unchanged file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		n := versionNumber(migration.Version)
		if i > 0 && n != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
		byVersion[n] = migration
	}

	for _, a := range applied {
		migration, ok := byVersion[versionNumber(a.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return NewMigrationError(a.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
