// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migrations are read from an fs.FS (usually an embedded directory) and must be
// named {version}_{description}.sql, for example "001_initial_schema.sql".
// Each file runs in its own transaction and is recorded in the
// schema_migrations table so it is applied at most once.
//
// Example usage:
//
//	scanner := migration.NewScanner(files, "migrations")
//	manager := migration.NewManager(scanner, migration.NewSQLiteExecutor(db), logger)
//	if _, err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
