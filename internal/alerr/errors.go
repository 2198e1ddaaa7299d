// Package alerr provides standardized error handling for xpdb.
// All errors have stable, machine-readable codes, structured context, and proper wrapping.
package alerr

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number}.
type Code string

// Error codes organized by category.
const (
	// Schema errors (E1xxx) - problems with declared schemas
	ErrSchemaInvalid       Code = "E1001" // Table or column descriptor is malformed
	ErrSchemaNotFound      Code = "E1002" // Schema file does not exist
	ErrDuplicateTable      Code = "E1003" // Two tables share a name
	ErrCyclicSchema        Code = "E1004" // Foreign-key graph contains a cycle
	ErrUnresolvedReference Code = "E1005" // Reference thunk failed or returned nothing
	ErrSchemaExport        Code = "E1006" // Schema file does not export a generator

	// Validation errors (E2xxx) - problems with user input
	ErrInvalidIdentifier Code = "E2001" // Identifier does not match allowed pattern
	ErrInvalidType       Code = "E2002" // Column type arguments are invalid
	ErrUnknownColumn     Code = "E2003" // Query references a column the table does not declare

	// Migration errors (E3xxx)
	ErrMigrationFailed      Code = "E3001" // Migration execution failed
	ErrUnsupportedOperation Code = "E3002" // Dialect cannot perform the requested change

	// SQL errors (E4xxx)
	ErrSQLExecution       Code = "E4001" // SQL statement failed to execute
	ErrSQLConnection      Code = "E4002" // Database connection failed
	ErrSQLTransaction     Code = "E4003" // Transaction operation failed
	ErrTransientExhausted Code = "E4004" // Transient failure persisted past the retry budget

	// Runtime errors (E5xxx) - problems evaluating schema files
	ErrJSExecution Code = "E5001" // JavaScript execution failed

	// Connection errors (E6xxx)
	ErrIntrospection     Code = "E6001" // Database introspection failed
	ErrUnsupportedDriver Code = "E6002" // No driver registered for the requested pair
	ErrDialectMismatch   Code = "E6003" // Driver's native dialect differs from the requested one
	ErrDuplicateDriver   Code = "E6004" // Two drivers registered under one name

	// Tooling errors (E7xxx) - xpdb-gen configuration and file watching
	ErrConfigInvalid Code = "E7001" // Config file is unreadable or malformed
	ErrWatch         Code = "E7002" // File watcher could not start

	// Internal errors (E9xxx)
	EInternalError Code = "E9001"
)

// Error is the standard error type for xpdb.
type Error struct {
	code    Code
	message string
	context map[string]any
	cause   error
	stack   string
}

// Error returns the formatted error string.
// Format:
//
//	[E3002] sqlite cannot alter column in place
//	  column: email
//	  dialect: sqlite
//	  table: users
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	// Sorted for deterministic output
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// GetCause returns the underlying cause error.
func (e *Error) GetCause() error {
	return e.cause
}

// GetStack returns the stack trace.
func (e *Error) GetStack() string {
	return e.stack
}

// Get returns a single context value as a string, or "" when absent.
func (e *Error) Get(key string) string {
	v, ok := e.context[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithTable adds table context to the error.
func (e *Error) WithTable(table string) *Error {
	return e.With("table", table)
}

// WithColumn adds column context to the error.
func (e *Error) WithColumn(name string) *Error {
	return e.With("column", name)
}

// WithDialect adds dialect context to the error.
func (e *Error) WithDialect(name string) *Error {
	return e.With("dialect", name)
}

// WithSQL adds SQL statement context to the error.
func (e *Error) WithSQL(sql string) *Error {
	return e.With("sql", sql)
}

// WithFile adds file context to the error.
func (e *Error) WithFile(path string) *Error {
	return e.With("file", path)
}

// WithHelp adds a help suggestion to the error (displayed as "help: ...").
func (e *Error) WithHelp(help string) *Error {
	helps, _ := e.context["helps"].([]string)
	helps = append(helps, help)
	return e.With("helps", helps)
}

// Helps returns all help suggestions attached to this error.
func (e *Error) Helps() []string {
	helps, _ := e.context["helps"].([]string)
	return helps
}

func captureStack(skip int) string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return b.String()
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		cause:   err,
		stack:   captureStack(3),
	}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var alerr *Error
	if errors.As(err, &alerr) {
		return alerr.code
	}

	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var alerr *Error
	ok := errors.As(err, &alerr)
	return alerr, ok
}

// WrapSQL creates an ErrSQLExecution error with table context.
// Example: WrapSQL(err, "introspect columns", "users")
func WrapSQL(err error, op string, table string) *Error {
	e := Wrap(ErrSQLExecution, err, "failed to "+op)
	if table != "" {
		e.WithTable(table)
	}
	return e
}
