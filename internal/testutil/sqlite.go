// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"

	"tradesetup/internal/db"
)

// OpenSQLite returns a migrated in-memory SQLite database. It holds a single
// connection, so code under test must use the tx handle inside transactions.
func OpenSQLite(t testing.TB) *db.DB {
	t.Helper()
	d, err := db.OpenDialector(sqlite.Open(":memory:"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	d.SQL.SetMaxOpenConns(1)
	if err := db.AutoMigrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(d) })
	return d
}
