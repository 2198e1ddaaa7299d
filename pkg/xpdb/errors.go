package xpdb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/queue"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrDuplicateTable is returned when two tables share a name.
	ErrDuplicateTable = errors.New("xpdb: duplicate table")

	// ErrUnsupportedDriver is returned when a driver or dialect name is unknown.
	ErrUnsupportedDriver = errors.New("xpdb: unsupported driver")

	// ErrDialectMismatch is returned when the requested dialect differs from
	// the driver's native one.
	ErrDialectMismatch = errors.New("xpdb: dialect mismatch")

	// ErrCyclicSchema is returned when foreign keys form a cycle.
	ErrCyclicSchema = errors.New("xpdb: cyclic schema")

	// ErrUnresolvedReference is returned when a reference thunk fails or
	// points outside the schema.
	ErrUnresolvedReference = errors.New("xpdb: unresolved reference")

	// ErrUnsupportedOperation is returned when the dialect cannot apply a change.
	ErrUnsupportedOperation = errors.New("xpdb: unsupported operation")

	// ErrMigrationFailed is returned when a migration fails to execute.
	ErrMigrationFailed = errors.New("xpdb: migration failed")

	// ErrConnectionFailed is returned when the database connection fails.
	ErrConnectionFailed = errors.New("xpdb: connection failed")

	// ErrSchemaInvalid is returned when a table or column is malformed.
	ErrSchemaInvalid = errors.New("xpdb: schema invalid")

	// ErrUnknownColumn is returned when a query names a key the table does
	// not declare.
	ErrUnknownColumn = errors.New("xpdb: unknown column")

	// ErrUnknownTable is returned by DB.Table for undeclared tables.
	ErrUnknownTable = errors.New("xpdb: unknown table")

	// ErrClosed is returned by every DB operation after Close.
	ErrClosed = queue.ErrClosed
)

// DuplicateTableError names the table declared twice.
type DuplicateTableError struct {
	Table string
	Cause error
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("xpdb: table %q is declared more than once", e.Table)
}

func (e *DuplicateTableError) Unwrap() error { return e.Cause }

func (e *DuplicateTableError) Is(target error) bool { return target == ErrDuplicateTable }

// UnsupportedDriverError is returned by Connect for an unknown driver or dialect.
type UnsupportedDriverError struct {
	Driver  string
	Dialect string
	// Supported lists the registered names of whichever was unknown.
	Supported []string
	Cause     error
}

func (e *UnsupportedDriverError) Error() string {
	var b strings.Builder
	switch {
	case e.Dialect != "" && e.Driver != "":
		fmt.Fprintf(&b, "xpdb: unsupported dialect %q for driver %q", e.Dialect, e.Driver)
	case e.Dialect != "":
		fmt.Fprintf(&b, "xpdb: unsupported dialect %q", e.Dialect)
	default:
		fmt.Fprintf(&b, "xpdb: unsupported driver %q", e.Driver)
	}
	if len(e.Supported) > 0 {
		fmt.Fprintf(&b, " (supported: %s)", strings.Join(e.Supported, ", "))
	}
	return b.String()
}

func (e *UnsupportedDriverError) Unwrap() error { return e.Cause }

func (e *UnsupportedDriverError) Is(target error) bool { return target == ErrUnsupportedDriver }

// DialectMismatchError is returned by Connect when ConnInfo.Dialect names a
// dialect the driver does not speak.
type DialectMismatchError struct {
	Driver    string
	Native    string
	Requested string
}

func (e *DialectMismatchError) Error() string {
	return fmt.Sprintf("xpdb: driver %q speaks %s, not %s", e.Driver, e.Native, e.Requested)
}

func (e *DialectMismatchError) Is(target error) bool { return target == ErrDialectMismatch }

// CyclicSchemaError lists the tables whose foreign keys form a cycle.
type CyclicSchemaError struct {
	Tables []string
	Cause  error
}

func (e *CyclicSchemaError) Error() string {
	return "xpdb: foreign key cycle between tables: " + strings.Join(e.Tables, ", ")
}

func (e *CyclicSchemaError) Unwrap() error { return e.Cause }

func (e *CyclicSchemaError) Is(target error) bool { return target == ErrCyclicSchema }

// MigrationError describes a failed schema change.
type MigrationError struct {
	Table   string
	Column  string
	Dialect string
	// SQL is the statement that failed, empty when the plan could not be built.
	SQL   string
	Cause error

	unsupported bool
}

func (e *MigrationError) Error() string {
	target := e.Table
	if e.Column != "" {
		target += "." + e.Column
	}
	msg := fmt.Sprintf("xpdb: migration failed on %s (%s): %v", target, e.Dialect, e.Cause)
	if e.SQL != "" {
		msg += "\nSQL: " + e.SQL
	}
	return msg
}

func (e *MigrationError) Unwrap() error { return e.Cause }

func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed || (e.unsupported && target == ErrUnsupportedOperation)
}

// ConnectionError is returned when Connect cannot reach the database. DSN has
// its password redacted.
type ConnectionError struct {
	Driver string
	DSN    string
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("xpdb: cannot connect with driver %q to %s: %v", e.Driver, e.DSN, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// SchemaError describes a malformed table, column or reference.
type SchemaError struct {
	Table   string
	Column  string
	Message string
	Cause   error

	unresolved bool
}

func (e *SchemaError) Error() string {
	target := ""
	if e.Table != "" {
		target = e.Table
		if e.Column != "" {
			target += "." + e.Column
		}
		target += ": "
	}
	return "xpdb: " + target + e.Message
}

func (e *SchemaError) Unwrap() error { return e.Cause }

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaInvalid || (e.unresolved && target == ErrUnresolvedReference)
}

// UnknownColumnError is returned by the query builders.
type UnknownColumnError struct {
	Table string
	Key   string
	// Suggestion is the closest declared key, if any.
	Suggestion string
}

func (e *UnknownColumnError) Error() string {
	msg := fmt.Sprintf("xpdb: table %q has no column %q", e.Table, e.Key)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *UnknownColumnError) Is(target error) bool { return target == ErrUnknownColumn }

// ----------------------------------------------------------------------------
// Translation from internal errors
// ----------------------------------------------------------------------------

// findCode returns the outermost structured error in err's chain with code.
func findCode(err error, code alerr.Code) (*alerr.Error, bool) {
	for err != nil {
		if ae, ok := err.(*alerr.Error); ok && ae.GetCode() == code {
			return ae, true
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}

// publicError converts internal errors into the typed errors of this package.
// Errors it does not recognise are returned unchanged.
func publicError(err error, dialectName string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, queue.ErrClosed) {
		return err
	}

	if ae, ok := findCode(err, alerr.ErrDuplicateTable); ok {
		return &DuplicateTableError{Table: ae.Get("table"), Cause: err}
	}
	if ae, ok := findCode(err, alerr.ErrCyclicSchema); ok {
		tables, _ := ae.GetContext()["tables"].([]string)
		return &CyclicSchemaError{Tables: tables, Cause: err}
	}
	if ae, ok := findCode(err, alerr.ErrUnresolvedReference); ok {
		return &SchemaError{Table: ae.Get("table"), Column: ae.Get("column"), Message: ae.GetMessage(), Cause: err, unresolved: true}
	}
	for _, code := range []alerr.Code{alerr.ErrSchemaInvalid, alerr.ErrInvalidIdentifier, alerr.ErrInvalidType} {
		if ae, ok := findCode(err, code); ok {
			return &SchemaError{Table: ae.Get("table"), Column: ae.Get("column"), Message: ae.GetMessage(), Cause: err}
		}
	}
	for _, code := range []alerr.Code{alerr.ErrUnsupportedOperation, alerr.ErrSQLExecution, alerr.ErrSQLTransaction, alerr.ErrTransientExhausted} {
		if ae, ok := findCode(err, code); ok {
			d := ae.Get("dialect")
			if d == "" {
				d = dialectName
			}
			return &MigrationError{
				Table:       ae.Get("table"),
				Column:      ae.Get("column"),
				Dialect:     d,
				SQL:         ae.Get("sql"),
				Cause:       err,
				unsupported: code == alerr.ErrUnsupportedOperation,
			}
		}
	}
	return err
}
