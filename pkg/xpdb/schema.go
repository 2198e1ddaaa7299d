// Package xpdb declares database schemas in Go, compares them with what a live
// database actually holds and applies the DDL that reconciles the two.
//
//	users := xpdb.Table("users",
//		xpdb.UUIDPK("id"),
//		xpdb.Varchar("email", xpdb.VarcharOpts{Length: 320}).NotNull().Unique(),
//		xpdb.Timestamp("createdAt").DefaultNow(),
//	)
//	schema, err := xpdb.NewSchema(users)
//	db, err := schema.Connect(ctx, xpdb.ConnInfo{Driver: "sqlite", DSN: "app.db"})
//	result, err := db.CreateOrMigrate(ctx)
package xpdb

import (
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/dsl"
	"github.com/hlop3z/xpdb/internal/engine"
	"github.com/hlop3z/xpdb/internal/fingerprint"
)

// Builder types.
type (
	// TableDef is a declared table.
	TableDef = ast.TableDef
	// ColumnDef is a built column.
	ColumnDef = ast.ColumnDef
	// Column is a column builder. Every modifier returns a copy.
	Column = dsl.ColumnBuilder
	// VarcharOpts configures Varchar.
	VarcharOpts = dsl.VarcharOpts
	// NumericOpts configures Numeric.
	NumericOpts = dsl.NumericOpts
	// RefOption configures a reference.
	RefOption = dsl.RefOption
)

// Table builds a table from columns in declaration order.
func Table(name string, cols ...Column) *TableDef { return dsl.Table(name, cols...) }

// Text declares an unbounded string column.
func Text(key string) Column { return dsl.Text(key) }

// Varchar declares a bounded string column, optionally restricted to an enum.
func Varchar(key string, opts ...VarcharOpts) Column { return dsl.Varchar(key, opts...) }

// Integer declares an integer column.
func Integer(key string) Column { return dsl.Integer(key) }

// Numeric declares a fixed-point column.
func Numeric(key string, opts ...NumericOpts) Column { return dsl.Numeric(key, opts...) }

// UUID declares a uuid column.
func UUID(key string) Column { return dsl.UUID(key) }

// UUIDPK declares a uuid primary key. Insert fills it when it is missing.
func UUIDPK(key string) Column { return dsl.UUIDPK(key) }

// Timestamp declares a timestamp column.
func Timestamp(key string) Column { return dsl.Timestamp(key) }

// Boolean declares a boolean column.
func Boolean(key string) Column { return dsl.Boolean(key) }

// OnDelete sets a reference's ON DELETE action.
func OnDelete(action string) RefOption { return dsl.OnDelete(action) }

// OnUpdate sets a reference's ON UPDATE action.
func OnUpdate(action string) RefOption { return dsl.OnUpdate(action) }

// ----------------------------------------------------------------------------
// Schema
// ----------------------------------------------------------------------------

// Schema is a validated set of declared tables.
type Schema struct {
	s *ast.Schema
}

// NewSchema collects tables into a schema and resolves their references.
// It fails with DuplicateTableError or SchemaError.
func NewSchema(tables ...*TableDef) (*Schema, error) {
	s, err := dsl.Schema(tables...)
	if err != nil {
		return nil, publicError(err, "")
	}
	if err := ast.ResolveReferences(s); err != nil {
		return nil, publicError(err, "")
	}
	return &Schema{s: s}, nil
}

// Names returns the table names in declaration order.
func (s *Schema) Names() []string {
	return s.s.Names()
}

// Table returns the declared table, or nil.
func (s *Schema) Table(name string) *TableDef {
	return s.s.Table(name)
}

// Fingerprint returns the short content hash of the schema. It changes
// whenever a table or column changes.
func (s *Schema) Fingerprint() (string, error) {
	h, err := fingerprint.Compute(s.s)
	if err != nil {
		return "", publicError(err, "")
	}
	return h.Short(), nil
}

// CreateSQL renders the CREATE script for an empty database of the named
// dialect, tables ordered so referenced ones come first.
func (s *Schema) CreateSQL(dialectName string) (string, error) {
	d, ok := dialect.Get(dialectName)
	if !ok {
		return "", &UnsupportedDriverError{Dialect: dialectName, Supported: dialect.Names()}
	}
	plan, err := engine.CreateScript(s.s, d)
	if err != nil {
		return "", publicError(err, d.Name())
	}
	return plan.SQL(), nil
}
