// Package database provides SQLite connectivity for the GreenHome proxy.
//
// The proxy keeps one small database: the command journal, recording every
// platform command it received and how far it got. This package owns the
// connection (WAL mode, busy timeout, single writer) and applies the
// embedded schema migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each migration is applied in its own
// transaction and recorded in schema_migrations.
package database
