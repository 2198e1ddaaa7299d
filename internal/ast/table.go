package ast

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// Validation messages shared across TableDef and ColumnDef.
const (
	msgTableNameRequired  = "table name is required"
	msgColumnNameRequired = "column name is required"
	msgTableNeedsColumn   = "table must have at least one column"
)

// validIdentifierPattern matches safe SQL identifiers (lowercase snake_case).
var validIdentifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateIdentifier checks that a name is a safe SQL identifier (lowercase snake_case).
func ValidateIdentifier(name string) error {
	if !validIdentifierPattern.MatchString(name) {
		return alerr.New(alerr.ErrInvalidIdentifier,
			fmt.Sprintf("invalid identifier %q; must match [a-z_][a-z0-9_]*", name))
	}
	return nil
}

// ValidFKActions is the set of valid ON DELETE / ON UPDATE actions.
var ValidFKActions = map[string]bool{
	"":            true,
	"CASCADE":     true,
	"SET NULL":    true,
	"SET DEFAULT": true,
	"RESTRICT":    true,
	"NO ACTION":   true,
}

// NormalizeFKAction normalizes and validates an FK action string.
func NormalizeFKAction(action string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(action))
	if !ValidFKActions[upper] {
		return "", alerr.New(alerr.ErrSchemaInvalid,
			fmt.Sprintf("invalid foreign key action %q; must be one of: CASCADE, SET NULL, SET DEFAULT, RESTRICT, NO ACTION", action))
	}
	return upper, nil
}

// -----------------------------------------------------------------------------
// TableDef - complete table definition
// -----------------------------------------------------------------------------

// TableDef describes one table: its name and its columns in declaration order.
type TableDef struct {
	Name    string
	Columns []*ColumnDef

	// err records a problem found while building the table. It is surfaced
	// when the table is added to a schema rather than at construction time.
	err error
}

// NewTableDef builds a table, stamping every column with the table's name.
// Columns are copied so the caller's values stay untouched.
func NewTableDef(name string, cols []*ColumnDef, buildErr error) *TableDef {
	t := &TableDef{Name: name, Columns: make([]*ColumnDef, 0, len(cols)), err: buildErr}
	for _, c := range cols {
		if c == nil {
			continue
		}
		cp := *c
		cp.Table = name
		t.Columns = append(t.Columns, &cp)
	}
	return t
}

// Err returns the error recorded while the table was built, if any.
func (t *TableDef) Err() error {
	return t.err
}

// Col returns the column whose key or SQL name matches name, or nil.
func (t *TableDef) Col(name string) *ColumnDef {
	if t == nil {
		return nil
	}
	for _, c := range t.Columns {
		if c.Key == name {
			return c
		}
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns the SQL column names in declaration order.
func (t *TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Keys returns the logical column keys in declaration order.
func (t *TableDef) Keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

// PrimaryKey returns the primary key column, or nil.
func (t *TableDef) PrimaryKey() *ColumnDef {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return nil
}

// ForeignKeys derives one foreign key per referencing column.
// References must have been resolved; unresolved ones are skipped.
func (t *TableDef) ForeignKeys() []*ForeignKeyDef {
	var fks []*ForeignKeyDef
	for _, c := range t.Columns {
		if c.Ref == nil || !c.Ref.Resolved() {
			continue
		}
		fks = append(fks, &ForeignKeyDef{
			Name:       fmt.Sprintf("fk_%s_%s", t.Name, c.Name),
			Columns:    []string{c.Name},
			RefTable:   c.Ref.Table,
			RefColumns: []string{c.Ref.Column},
			OnDelete:   c.Ref.OnDelete,
			OnUpdate:   c.Ref.OnUpdate,
		})
	}
	return fks
}

// Dependencies returns the names of other tables this table references.
func (t *TableDef) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	for _, c := range t.Columns {
		if c.Ref == nil || !c.Ref.Resolved() {
			continue
		}
		ref := c.Ref.Table
		if ref == t.Name || seen[ref] {
			continue
		}
		seen[ref] = true
		deps = append(deps, ref)
	}
	return deps
}

// Validate checks that the table definition is well-formed.
func (t *TableDef) Validate() error {
	if t.err != nil {
		return t.err
	}
	if t.Name == "" {
		return alerr.New(alerr.ErrSchemaInvalid, msgTableNameRequired)
	}
	if err := ValidateIdentifier(t.Name); err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return alerr.New(alerr.ErrSchemaInvalid, msgTableNeedsColumn).WithTable(t.Name)
	}

	names := make(map[string]bool, len(t.Columns))
	keys := make(map[string]bool, len(t.Columns))
	pks := 0
	for _, c := range t.Columns {
		if err := c.Validate(); err != nil {
			if e, ok := alerr.As(err); ok {
				e.WithTable(t.Name)
			}
			return err
		}
		if names[c.Name] {
			return alerr.New(alerr.ErrSchemaInvalid, "duplicate column name").
				WithTable(t.Name).WithColumn(c.Name)
		}
		if keys[c.Key] {
			return alerr.New(alerr.ErrSchemaInvalid, "duplicate column key").
				WithTable(t.Name).WithColumn(c.Key)
		}
		names[c.Name] = true
		keys[c.Key] = true
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return alerr.New(alerr.ErrSchemaInvalid, "table declares more than one primary key").
			WithTable(t.Name).
			WithHelp("composite primary keys are not supported; use a unique column instead")
	}
	return nil
}

// -----------------------------------------------------------------------------
// ColumnDef - complete column definition
// -----------------------------------------------------------------------------

// ColumnDef describes one column. It is treated as immutable once built.
type ColumnDef struct {
	Key        string // logical name used in code (e.g. createdAt)
	Name       string // SQL name (e.g. created_at)
	Type       Type
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	Default    *Default
	Ref        *Reference

	// Table is the owning table's name, stamped by NewTableDef.
	Table string
}

// IsNullable reports whether the column accepts NULL. Primary keys never do.
func (c *ColumnDef) IsNullable() bool {
	return c.Nullable && !c.PrimaryKey
}

// Validate checks that the column definition is well-formed.
func (c *ColumnDef) Validate() error {
	if c.Name == "" {
		return alerr.New(alerr.ErrSchemaInvalid, msgColumnNameRequired)
	}
	if err := ValidateIdentifier(c.Name); err != nil {
		return err
	}
	switch c.Type.Kind {
	case KindVarchar:
		if c.Type.Length <= 0 {
			return alerr.New(alerr.ErrInvalidType, "varchar length must be positive").WithColumn(c.Name)
		}
		for _, v := range c.Type.Enum {
			if len(v) > c.Type.Length {
				return alerr.Newf(alerr.ErrInvalidType, "enum value %q exceeds varchar(%d)", v, c.Type.Length).
					WithColumn(c.Name)
			}
		}
	case KindNumeric:
		if c.Type.Precision <= 0 || c.Type.Scale < 0 || c.Type.Scale > c.Type.Precision {
			return alerr.Newf(alerr.ErrInvalidType, "invalid numeric(%d,%d)", c.Type.Precision, c.Type.Scale).
				WithColumn(c.Name)
		}
	case KindUnknown:
		return alerr.New(alerr.ErrInvalidType, "column type is required").WithColumn(c.Name)
	}
	if c.Default != nil && c.Default.Kind == DefaultNow && c.Type.Kind != KindTimestamp {
		return alerr.New(alerr.ErrInvalidType, "defaultNow() requires a timestamp column").WithColumn(c.Name)
	}
	if c.Ref != nil {
		if _, err := NormalizeFKAction(c.Ref.OnDelete); err != nil {
			return err
		}
		if _, err := NormalizeFKAction(c.Ref.OnUpdate); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Reference - lazily resolved foreign key target
// -----------------------------------------------------------------------------

// Reference is a foreign key target. Declared references carry a zero-argument
// thunk so tables can point at each other before both exist; the thunk is only
// invoked by Resolve, at most once. Introspected references are created resolved.
type Reference struct {
	Table    string
	Column   string
	OnDelete string
	OnUpdate string

	thunk func() *ColumnDef
	once  sync.Once
	err   error
}

// NewReference returns an already resolved reference.
func NewReference(table, column string) *Reference {
	return &Reference{Table: table, Column: column}
}

// LazyReference returns a reference resolved on first use by calling fn.
func LazyReference(fn func() *ColumnDef) *Reference {
	return &Reference{thunk: fn}
}

// Resolved reports whether the target table and column are known.
func (r *Reference) Resolved() bool {
	return r.Table != "" && r.Column != ""
}

// Resolve invokes the thunk once and memoizes the result. A thunk that panics,
// returns nil, or returns a column not attached to a table is an error.
func (r *Reference) Resolve() error {
	if r.thunk == nil {
		if !r.Resolved() {
			return alerr.New(alerr.ErrUnresolvedReference, "reference has no target")
		}
		return nil
	}
	r.once.Do(func() {
		target, err := callThunk(r.thunk)
		if err != nil {
			r.err = err
			return
		}
		if target == nil {
			r.err = alerr.New(alerr.ErrUnresolvedReference, "reference thunk returned no column")
			return
		}
		if target.Table == "" {
			r.err = alerr.New(alerr.ErrUnresolvedReference, "reference target is not part of a table").
				WithColumn(target.Name)
			return
		}
		r.Table = target.Table
		r.Column = target.Name
	})
	return r.err
}

func callThunk(fn func() *ColumnDef) (col *ColumnDef, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = alerr.Newf(alerr.ErrUnresolvedReference, "reference thunk failed: %v", p)
		}
	}()
	return fn(), nil
}

// String renders the reference as table.column.
func (r *Reference) String() string {
	if !r.Resolved() {
		return "<unresolved>"
	}
	return r.Table + "." + r.Column
}

// -----------------------------------------------------------------------------
// ForeignKeyDef - foreign key constraint definition
// -----------------------------------------------------------------------------

// ForeignKeyDef represents a foreign key constraint. Columns and RefColumns are
// parallel lists so composite keys are representable.
type ForeignKeyDef struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}
