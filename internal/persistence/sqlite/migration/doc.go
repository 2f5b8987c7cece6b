// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS (usually an embed.FS compiled into
// the binary) and follow the naming convention {version}_{description}.sql,
// for example "001_create_users.sql". Applied versions and their checksums
// are tracked in a schema_migrations table; each migration and its version
// record are committed in the same transaction.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewFileScanner(), migration.NewSQLiteExecutor(db), files, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
