package driver

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Postgres SQLSTATE classes and codes that describe a server or connection in
// a temporary state rather than a bad statement.
var (
	pgTransientClasses = []string{
		"08", // connection exception
		"40", // transaction rollback (serialization failure, deadlock)
		"53", // insufficient resources
	}
	pgTransientCodes = []string{
		"57P03", // cannot_connect_now
	}
)

// MySQL server error numbers worth retrying.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func badConn(err error) bool {
	return errors.Is(err, driver.ErrBadConn)
}

func pgStateTransient(code string) bool {
	for _, c := range pgTransientCodes {
		if code == c {
			return true
		}
	}
	for _, class := range pgTransientClasses {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	return false
}

func pqTransient(err error) bool {
	if badConn(err) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgStateTransient(string(pqErr.Code))
	}
	return false
}

func pgxTransient(err error) bool {
	if badConn(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgStateTransient(pgErr.Code)
	}
	return false
}

func moderncTransient(err error) bool {
	if badConn(err) {
		return true
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended codes carry the primary code in the low byte
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// mattnTransient matches on the message because go-sqlite3's error type only
// exists in cgo builds.
func mattnTransient(err error) bool {
	if badConn(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "database is busy")
}

func mysqlTransient(err error) bool {
	if badConn(err) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}
	return false
}
