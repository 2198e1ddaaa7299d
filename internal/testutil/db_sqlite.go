package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"
)

var memoryDBCounter atomic.Int64

// SQLiteDSN returns a DSN for a private in-memory SQLite database. Every call
// names a distinct database so tests never see each other's tables.
func SQLiteDSN(t *testing.T) string {
	t.Helper()
	n := memoryDBCounter.Add(1)
	return fmt.Sprintf("file:xpdbtest%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", n)
}

// SetupSQLite creates an in-memory SQLite database for testing.
// The connection is automatically closed when the test completes.
func SetupSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", SQLiteDSN(t))
	if err != nil {
		t.Fatalf("failed to open sqlite connection: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping sqlite: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// ExecSQL runs statements in order, failing the test on the first error.
func ExecSQL(t *testing.T, db *sql.DB, statements ...string) {
	t.Helper()

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec failed: %v\nsql: %s", err, stmt)
		}
	}
}

// AssertTableExists checks that a table exists in the SQLite database.
func AssertTableExists(t *testing.T, db *sql.DB, table string) {
	t.Helper()

	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err != nil {
		t.Errorf("table %q does not exist: %v", table, err)
	}
}

// AssertColumnExists checks that a column exists on a SQLite table.
func AssertColumnExists(t *testing.T, db *sql.DB, table, column string) {
	t.Helper()

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&count)
	if err != nil {
		t.Fatalf("failed to inspect %s: %v", table, err)
	}
	if count == 0 {
		t.Errorf("column %s.%s does not exist", table, column)
	}
}
