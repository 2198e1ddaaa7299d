// Package introspect reads the actual schema of a live database. It queries
// the system catalogs of each dialect and converts what it finds into the same
// ast structures declared schemas use, so the two can be diffed directly.
package introspect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx the introspectors use.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Introspector queries database catalogs to discover schema information.
type Introspector interface {
	// Dialect returns the canonical dialect name.
	Dialect() string

	// TableNames lists user tables in name order.
	TableNames(ctx context.Context) ([]string, error)

	// TableColumns returns the columns of a table in ordinal order, or nil
	// if the table does not exist.
	TableColumns(ctx context.Context, table string) ([]ColumnInfo, error)

	// TableForeignKeys returns the foreign keys of a table.
	TableForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error)

	// ColumnType maps a column's native type to a logical type.
	// Unrecognised native types map to ast.KindUnknown; it never fails.
	ColumnType(col ColumnInfo) ast.Type
}

// ColumnInfo is column metadata as reported by the database catalog.
type ColumnInfo struct {
	Name       string
	NativeType string // raw SQL type (character varying, VARCHAR(64), enum('a','b'), ...)
	Nullable   bool
	Default    *string // raw default expression, nil when none
	PrimaryKey bool
	Unique     bool     // single-column unique constraint
	Enum       []string // values recovered from a CHECK (col IN (...)) or ENUM type

	// Catalog-reported sizes, zero when unknown.
	Length    int
	Precision int
	Scale     int
}

// ForeignKeyInfo is foreign key metadata as reported by the database catalog.
// Composite keys keep Columns and RefColumns parallel.
type ForeignKeyInfo struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
	OnUpdate   string
}

// New creates an Introspector for the given dialect name or alias.
func New(q Querier, dialectName string) (Introspector, error) {
	switch dialect.Canonical(dialectName) {
	case dialect.NamePostgres:
		return &postgresIntrospector{q: q}, nil
	case dialect.NameSQLite:
		return &sqliteIntrospector{q: q}, nil
	case dialect.NameMySQL:
		return &mysqlIntrospector{q: q}, nil
	default:
		return nil, alerr.Newf(alerr.ErrUnsupportedDriver, "no introspector for dialect %q", dialectName).
			With("supported", strings.Join(dialect.Names(), ", "))
	}
}

// DetectSchema reads every user table and returns the runtime schema.
// Column keys are the camelCase form of the SQL names; references come back
// resolved. Internal tables are skipped.
func DetectSchema(ctx context.Context, in Introspector) (*ast.Schema, error) {
	names, err := in.TableNames(ctx)
	if err != nil {
		return nil, alerr.Wrap(alerr.ErrIntrospection, err, "cannot list tables").WithDialect(in.Dialect())
	}

	schema := ast.NewSchema()
	for _, name := range names {
		if IsInternalTable(name) {
			continue
		}

		table, err := detectTable(ctx, in, name)
		if err != nil {
			return nil, alerr.Wrap(alerr.ErrIntrospection, err, "cannot introspect table").
				WithTable(name).WithDialect(in.Dialect())
		}
		if table == nil {
			continue
		}
		if err := schema.Add(table); err != nil {
			return nil, err
		}
	}

	return schema, nil
}

func detectTable(ctx context.Context, in Introspector, name string) (*ast.TableDef, error) {
	cols, err := in.TableColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	fks, err := in.TableForeignKeys(ctx, name)
	if err != nil {
		return nil, err
	}

	// Only single-column keys map onto a column reference.
	refs := make(map[string]*ast.Reference, len(fks))
	for _, fk := range fks {
		if len(fk.Columns) != 1 || len(fk.RefColumns) != 1 || fk.RefColumns[0] == "" {
			continue
		}
		ref := ast.NewReference(fk.RefTable, fk.RefColumns[0])
		ref.OnDelete = normalizeAction(fk.OnDelete)
		ref.OnUpdate = normalizeAction(fk.OnUpdate)
		refs[fk.Columns[0]] = ref
	}

	defs := make([]*ast.ColumnDef, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, &ast.ColumnDef{
			Key:        strutil.ToCamelCase(c.Name),
			Name:       c.Name,
			Type:       in.ColumnType(c),
			Nullable:   c.Nullable && !c.PrimaryKey, // PK columns are never nullable
			PrimaryKey: c.PrimaryKey,
			Unique:     c.Unique && !c.PrimaryKey,
			Default:    runtimeDefault(c.Default),
			Ref:        refs[c.Name],
		})
	}

	return ast.NewTableDef(name, defs, nil), nil
}

// runtimeDefault keeps catalog defaults as raw expressions. An explicit NULL
// default is the same as none.
func runtimeDefault(raw *string) *ast.Default {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	upper := strings.ToUpper(s)
	if s == "" || upper == "NULL" || strings.HasPrefix(upper, "NULL::") {
		return nil
	}
	return ast.Expr(s)
}

// normalizeAction converts a catalog FK action to the form the dialects
// render. NO ACTION is the default and is dropped.
func normalizeAction(action string) string {
	switch a := strings.ToUpper(strings.TrimSpace(action)); a {
	case "CASCADE", "SET NULL", "SET DEFAULT", "RESTRICT":
		return a
	default:
		return ""
	}
}

// internalPrefixes lists table prefixes that belong to xpdb or the engine itself.
var internalPrefixes = []string{"xpdb_", "sqlite_"}

// IsInternalTable reports whether a table should be skipped during introspection.
func IsInternalTable(name string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
