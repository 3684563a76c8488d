package database

import "errors"

var (
	// ErrNoPath is returned by Open when the configured path is empty.
	ErrNoPath = errors.New("database path is empty")

	// ErrNoDownMigration is returned by MigrateDown when the latest
	// migration has no .down.sql file.
	ErrNoDownMigration = errors.New("migration has no down SQL")

	// ErrMigrationMissing is returned when an applied version has no file.
	ErrMigrationMissing = errors.New("applied migration not found")
)
