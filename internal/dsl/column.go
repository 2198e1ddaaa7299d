// Package dsl provides the builder API for declaring tables and columns.
// Builders are pure: they perform no I/O and never evaluate reference thunks.
package dsl

import (
	"slices"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// ColumnBuilder provides a fluent API for building column definitions.
// It is a value type: every modifier returns a modified copy and leaves the
// receiver untouched, so a partially built column can be reused safely.
type ColumnBuilder struct {
	def ast.ColumnDef
}

// NewColumnBuilder creates a nullable column of the given type. The SQL name
// is the snake_case form of key.
func NewColumnBuilder(key string, typ ast.Type) ColumnBuilder {
	return ColumnBuilder{
		def: ast.ColumnDef{
			Key:      key,
			Name:     strutil.ToSnakeCase(key),
			Type:     typ,
			Nullable: true,
		},
	}
}

// Build returns the final column definition.
func (c ColumnBuilder) Build() *ast.ColumnDef {
	def := c.def
	def.Type.Enum = slices.Clone(c.def.Type.Enum)
	return &def
}

// Key returns the logical column key.
func (c ColumnBuilder) Key() string {
	return c.def.Key
}

// Named overrides the SQL column name.
func (c ColumnBuilder) Named(sqlName string) ColumnBuilder {
	c.def.Name = sqlName
	return c
}

// WithKey overrides the logical key, keeping an explicitly set SQL name.
func (c ColumnBuilder) WithKey(key string) ColumnBuilder {
	if c.def.Name == strutil.ToSnakeCase(c.def.Key) {
		c.def.Name = strutil.ToSnakeCase(key)
	}
	c.def.Key = key
	return c
}

// NotNull marks the column as NOT NULL.
func (c ColumnBuilder) NotNull() ColumnBuilder {
	c.def.Nullable = false
	return c
}

// Unique adds a unique constraint to the column.
func (c ColumnBuilder) Unique() ColumnBuilder {
	c.def.Unique = true
	return c
}

// PrimaryKey marks the column as the primary key.
func (c ColumnBuilder) PrimaryKey() ColumnBuilder {
	c.def.PrimaryKey = true
	c.def.Nullable = false
	return c
}

// Default sets a literal default value (string, bool, integer or float).
func (c ColumnBuilder) Default(value any) ColumnBuilder {
	c.def.Default = ast.Literal(value)
	return c
}

// DefaultSQL sets a raw SQL expression as the default.
func (c ColumnBuilder) DefaultSQL(expr string) ColumnBuilder {
	c.def.Default = ast.Expr(expr)
	return c
}

// DefaultNow defaults the column to the current timestamp.
func (c ColumnBuilder) DefaultNow() ColumnBuilder {
	c.def.Default = ast.Now()
	return c
}

// References declares a foreign key. fn is stored and invoked only when the
// schema is resolved, so it may mention tables declared later.
func (c ColumnBuilder) References(fn func() *ast.ColumnDef, opts ...RefOption) ColumnBuilder {
	ref := ast.LazyReference(fn)
	for _, opt := range opts {
		opt(ref)
	}
	c.def.Ref = ref
	return c
}

// RefOption is a functional option for configuring a reference.
type RefOption func(*ast.Reference)

// OnDelete sets the ON DELETE action.
func OnDelete(action string) RefOption {
	return func(r *ast.Reference) {
		r.OnDelete = action
	}
}

// OnUpdate sets the ON UPDATE action.
func OnUpdate(action string) RefOption {
	return func(r *ast.Reference) {
		r.OnUpdate = action
	}
}

// -----------------------------------------------------------------------------
// Column constructors
// -----------------------------------------------------------------------------

// VarcharOpts configures Varchar. Length 0 means 255, widened to fit the
// longest enum value.
type VarcharOpts struct {
	Length int
	Enum   []string
}

// NumericOpts configures Numeric. Precision 0 means 10.
type NumericOpts struct {
	Precision int
	Scale     int
}

// Text declares an unbounded text column.
func Text(key string) ColumnBuilder {
	return NewColumnBuilder(key, ast.Type{Kind: ast.KindText})
}

// Varchar declares a bounded string column, optionally restricted to enum values.
func Varchar(key string, opts ...VarcharOpts) ColumnBuilder {
	var o VarcharOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	length := o.Length
	if length == 0 {
		length = ast.DefaultVarcharLength
		for _, v := range o.Enum {
			length = max(length, len(v))
		}
	}
	return NewColumnBuilder(key, ast.Type{
		Kind:   ast.KindVarchar,
		Length: length,
		Enum:   slices.Clone(o.Enum),
	})
}

// Integer declares a 32-bit integer column.
func Integer(key string) ColumnBuilder {
	return NewColumnBuilder(key, ast.Type{Kind: ast.KindInteger})
}

// Numeric declares a fixed-point decimal column.
func Numeric(key string, opts ...NumericOpts) ColumnBuilder {
	o := NumericOpts{Precision: ast.DefaultNumericPrecision}
	if len(opts) > 0 {
		o = opts[0]
		if o.Precision == 0 {
			o.Precision = ast.DefaultNumericPrecision
		}
	}
	return NewColumnBuilder(key, ast.Type{Kind: ast.KindNumeric, Precision: o.Precision, Scale: o.Scale})
}

// UUID declares a uuid column.
func UUID(key string) ColumnBuilder {
	return NewColumnBuilder(key, ast.Type{Kind: ast.KindUUID})
}

// UUIDPK declares a uuid primary key column.
func UUIDPK(key string) ColumnBuilder {
	return UUID(key).PrimaryKey()
}

// Timestamp declares a timestamp column.
func Timestamp(key string) ColumnBuilder {
	return NewColumnBuilder(key, ast.Type{Kind: ast.KindTimestamp})
}

// Boolean declares a boolean column.
func Boolean(key string) ColumnBuilder {
	return NewColumnBuilder(key, ast.Type{Kind: ast.KindBoolean})
}
