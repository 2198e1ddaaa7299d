package dsl

import (
	"fmt"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
)

// Table builds a table from columns in declaration order. Problems such as a
// missing column key are recorded on the table and reported when the table is
// added to a schema.
func Table(name string, cols ...ColumnBuilder) *ast.TableDef {
	defs := make([]*ast.ColumnDef, 0, len(cols))
	var buildErr error
	for i, c := range cols {
		if c.def.Key == "" && buildErr == nil {
			buildErr = alerr.New(alerr.ErrSchemaInvalid, fmt.Sprintf("column %d has no name", i)).
				WithTable(name)
		}
		defs = append(defs, c.Build())
	}
	return ast.NewTableDef(name, defs, buildErr)
}

// Schema collects tables into a declared schema, rejecting duplicates and
// malformed tables.
func Schema(tables ...*ast.TableDef) (*ast.Schema, error) {
	s := ast.NewSchema()
	for i, t := range tables {
		if t == nil {
			return nil, alerr.Newf(alerr.ErrSchemaInvalid, "table %d is nil", i)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}
