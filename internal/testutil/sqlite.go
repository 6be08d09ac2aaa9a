// Package testutil holds helpers shared by package tests that need a real
// store.  The SQLite harness runs the same SQL the MySQL deployment runs.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/iliyamo/doctors-appointment/internal/config"
	"github.com/iliyamo/doctors-appointment/internal/database"
)

// OpenSQLite returns a migrated database backed by a file in a temporary
// directory.  The handle is closed automatically when the test ends.
func OpenSQLite(tb testing.TB) *sql.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "doctors.db")
	db, err := database.OpenSQLite(path)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, config.DriverSQLite); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
