// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS, usually an embedded directory, and
// must be named {version}_{description}.sql (for example
// "001_create_rooms.sql"). Applied versions are tracked in the
// schema_migrations table so that each file runs exactly once.
//
//	manager := migration.NewManager(files, migration.NewSQLiteExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
