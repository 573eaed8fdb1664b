// Package database provides SQLite connectivity for the orgadmin credential
// store and permission catalog.
//
// This package manages:
//   - Database connection with WAL mode and foreign keys enforced
//   - Versioned schema migrations read from an fs.FS (see the migrations package)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600
//   - Refresh tokens are stored as hashes only
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS()); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql. Each migration is applied in its own transaction.
package database
