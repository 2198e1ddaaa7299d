package ast

import (
	"github.com/hlop3z/xpdb/internal/alerr"
)

// Schema is an ordered set of tables keyed by name. It represents either a
// declared schema or an introspected runtime schema.
type Schema struct {
	tables map[string]*TableDef
	order  []string
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{tables: make(map[string]*TableDef)}
}

// Add registers a table. Adding a second table with the same name fails with
// ErrDuplicateTable.
func (s *Schema) Add(t *TableDef) error {
	if t == nil {
		return alerr.New(alerr.ErrSchemaInvalid, "nil table")
	}
	if _, exists := s.tables[t.Name]; exists {
		return alerr.Newf(alerr.ErrDuplicateTable, "table %q is declared more than once", t.Name).
			WithTable(t.Name)
	}
	s.tables[t.Name] = t
	s.order = append(s.order, t.Name)
	return nil
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *TableDef {
	return s.tables[name]
}

// Has reports whether a table with the given name exists.
func (s *Schema) Has(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Tables returns the tables in insertion order.
func (s *Schema) Tables() []*TableDef {
	out := make([]*TableDef, len(s.order))
	for i, name := range s.order {
		out[i] = s.tables[name]
	}
	return out
}

// Names returns the table names in insertion order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	return len(s.order)
}

// ResolveReferences runs every reference thunk in the schema once and checks
// that each target exists. It must succeed before the schema is diffed or
// turned into DDL.
func ResolveReferences(s *Schema) error {
	for _, t := range s.Tables() {
		for _, c := range t.Columns {
			if c.Ref == nil {
				continue
			}
			if err := c.Ref.Resolve(); err != nil {
				if e, ok := alerr.As(err); ok {
					return alerr.Wrap(alerr.ErrUnresolvedReference, e, "cannot resolve foreign key").
						WithTable(t.Name).WithColumn(c.Name)
				}
				return err
			}
			target := s.Table(c.Ref.Table)
			if target == nil {
				return alerr.Newf(alerr.ErrUnresolvedReference, "referenced table %q is not part of the schema", c.Ref.Table).
					WithTable(t.Name).WithColumn(c.Name)
			}
			if target.Col(c.Ref.Column) == nil {
				return alerr.Newf(alerr.ErrUnresolvedReference, "referenced column %q does not exist", c.Ref.String()).
					WithTable(t.Name).WithColumn(c.Name)
			}
		}
	}
	return nil
}
