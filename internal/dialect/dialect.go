// Package dialect provides database-specific SQL generation.
// Each dialect maps logical column types to native SQL types, quotes
// identifiers, and renders schema operations as DDL.
package dialect

import (
	"fmt"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
)

// Dialect names.
const (
	NamePostgres = "postgres"
	NameSQLite   = "sqlite"
	NameMySQL    = "mysql"
)

// Dialect defines the interface for database-specific SQL generation.
type Dialect interface {
	// Name returns the canonical dialect name (postgres, sqlite, mysql).
	Name() string

	// -------------------------------------------------------------------------
	// Type mappings (logical type -> SQL)
	// -------------------------------------------------------------------------

	TypeMapper

	// ColumnTypeSQL returns the native SQL type for a logical type.
	ColumnTypeSQL(t ast.Type) string

	// DefaultSQL renders a default value as a SQL expression.
	DefaultSQL(d *ast.Default) string

	// -------------------------------------------------------------------------
	// Identifiers
	// -------------------------------------------------------------------------

	// QuoteIdent quotes an identifier (table/column name) for the dialect.
	// PostgreSQL/SQLite: "name", MySQL: `name`
	QuoteIdent(name string) string

	// Placeholder returns a parameter placeholder for the given index (1-based).
	// PostgreSQL: $1, $2, ... SQLite/MySQL: ?
	Placeholder(index int) string

	// -------------------------------------------------------------------------
	// Feature support
	// -------------------------------------------------------------------------

	// SupportsTransactionalDDL reports whether DDL can be wrapped in a transaction.
	SupportsTransactionalDDL() bool

	// SupportsAlterColumn reports whether columns can be altered in place.
	SupportsAlterColumn() bool

	// -------------------------------------------------------------------------
	// SQL generation for operations
	// -------------------------------------------------------------------------

	CreateTableSQL(op *ast.CreateTable) (string, error)
	DropTableSQL(op *ast.DropTable) (string, error)
	AddColumnSQL(op *ast.AddColumn) (string, error)
	DropColumnSQL(op *ast.DropColumn) (string, error)

	// AlterColumnSQL may need several statements for one column.
	AlterColumnSQL(op *ast.AlterColumn) ([]string, error)
}

// Statements renders any operation to one or more SQL statements.
func Statements(d Dialect, op ast.Operation) ([]string, error) {
	var (
		stmt string
		err  error
	)
	switch o := op.(type) {
	case *ast.CreateTable:
		stmt, err = d.CreateTableSQL(o)
	case *ast.DropTable:
		stmt, err = d.DropTableSQL(o)
	case *ast.AddColumn:
		stmt, err = d.AddColumnSQL(o)
	case *ast.DropColumn:
		stmt, err = d.DropColumnSQL(o)
	case *ast.AlterColumn:
		return d.AlterColumnSQL(o)
	default:
		return nil, alerr.Newf(alerr.EInternalError, "unknown operation %T", op)
	}
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

// Get returns the dialect implementation for the given name or alias.
// Valid names: postgres, postgresql, pg, sqlite, sqlite3, mysql, mariadb.
func Get(name string) (Dialect, bool) {
	switch Canonical(name) {
	case NamePostgres:
		return Postgres(), true
	case NameSQLite:
		return SQLite(), true
	case NameMySQL:
		return MySQL(), true
	default:
		return nil, false
	}
}

// MustGet is Get for names known at compile time.
func MustGet(name string) Dialect {
	d, ok := Get(name)
	if !ok {
		panic(fmt.Sprintf("dialect: unknown dialect %q", name))
	}
	return d
}

// Canonical maps an alias to its canonical dialect name. Unknown names are
// returned lowercased and trimmed.
func Canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "postgres", "postgresql", "pg":
		return NamePostgres
	case "sqlite", "sqlite3":
		return NameSQLite
	case "mysql", "mariadb":
		return NameMySQL
	default:
		return n
	}
}

// Names returns the list of supported dialect names.
func Names() []string {
	return []string{NamePostgres, NameSQLite, NameMySQL}
}

// unsupported returns a standardized error for changes a dialect cannot make.
func unsupported(d Dialect, msg, table, column string) *alerr.Error {
	e := alerr.New(alerr.ErrUnsupportedOperation, msg).WithDialect(d.Name()).WithTable(table)
	if column != "" {
		e.WithColumn(column)
	}
	return e
}
