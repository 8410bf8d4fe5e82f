// Package database provides SQLite connectivity for factoryd.
//
// factoryd keeps little state of its own: the item detail cache is the main
// tenant. This package manages:
//   - The connection, with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS (see the migrations package)
//   - File permissions (0600) and a health check for the API
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default.
package database
