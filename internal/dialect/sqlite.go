package dialect

import (
	"fmt"
	"strings"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// sqlite implements the Dialect interface for SQLite.
// Declared type names are kept verbatim by SQLite, so logical types are
// written with names the introspector can map back (UUID, TIMESTAMP, BOOLEAN).
type sqlite struct{}

// SQLite returns the SQLite dialect implementation.
func SQLite() Dialect {
	return &sqlite{}
}

func (d *sqlite) Name() string {
	return NameSQLite
}

// -----------------------------------------------------------------------------
// Type mappings
// -----------------------------------------------------------------------------

func (d *sqlite) TextType() string {
	return "TEXT"
}

func (d *sqlite) VarcharType(length int) string {
	return fmt.Sprintf("VARCHAR(%d)", length)
}

func (d *sqlite) IntegerType() string {
	return "INTEGER"
}

func (d *sqlite) NumericType(precision, scale int) string {
	return fmt.Sprintf("NUMERIC(%d, %d)", precision, scale)
}

func (d *sqlite) UUIDType() string {
	return "UUID"
}

func (d *sqlite) TimestampType() string {
	return "TIMESTAMP"
}

func (d *sqlite) BooleanType() string {
	return "BOOLEAN"
}

func (d *sqlite) ColumnTypeSQL(t ast.Type) string {
	return buildColumnTypeSQL(t, d)
}

func (d *sqlite) DefaultSQL(def *ast.Default) string {
	if def != nil && def.Kind == ast.DefaultExpr {
		expr := strings.ReplaceAll(def.Expr, "NOW()", "CURRENT_TIMESTAMP")
		return strings.ReplaceAll(expr, "now()", "CURRENT_TIMESTAMP")
	}
	return buildDefaultValueSQL(def, IntegerBooleans, "CURRENT_TIMESTAMP")
}

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

func (d *sqlite) QuoteIdent(name string) string {
	return strutil.QuoteIdent(name, '"')
}

func (d *sqlite) Placeholder(index int) string {
	return "?"
}

// -----------------------------------------------------------------------------
// Feature support
// -----------------------------------------------------------------------------

func (d *sqlite) SupportsTransactionalDDL() bool {
	return true
}

func (d *sqlite) SupportsAlterColumn() bool {
	return false
}

// -----------------------------------------------------------------------------
// SQL generation
// -----------------------------------------------------------------------------

func (d *sqlite) CreateTableSQL(op *ast.CreateTable) (string, error) {
	return buildCreateTableSQL(op, d.QuoteIdent, d.columnDefSQL(false), nil)
}

func (d *sqlite) DropTableSQL(op *ast.DropTable) (string, error) {
	return buildDropTableSQL(op, d.QuoteIdent)
}

// AddColumnSQL rejects the column shapes SQLite's ALTER TABLE ADD COLUMN refuses.
func (d *sqlite) AddColumnSQL(op *ast.AddColumn) (string, error) {
	col := op.Column
	switch {
	case col.PrimaryKey:
		return "", unsupported(d, "SQLite cannot add a PRIMARY KEY column to an existing table", op.Table(), col.Name)
	case col.Unique:
		return "", unsupported(d, "SQLite cannot add a UNIQUE column to an existing table", op.Table(), col.Name)
	case col.Default != nil && col.Default.Kind != ast.DefaultLiteral:
		return "", unsupported(d, "SQLite cannot add a column with a non-constant default", op.Table(), col.Name)
	case !col.IsNullable() && col.Default == nil:
		return "", unsupported(d, "SQLite cannot add a NOT NULL column without a default", op.Table(), col.Name)
	}
	return buildAddColumnSQL(op, d.QuoteIdent, d.columnDefSQL(true))
}

func (d *sqlite) DropColumnSQL(op *ast.DropColumn) (string, error) {
	return buildDropColumnSQL(op, d.QuoteIdent)
}

func (d *sqlite) AlterColumnSQL(op *ast.AlterColumn) ([]string, error) {
	return nil, unsupported(d, fmt.Sprintf("SQLite cannot alter column %s in place", op.Changes), op.Table(), op.To.Name).
		WithHelp("recreate the table or drop and re-add the column")
}

// -----------------------------------------------------------------------------
// Helper methods
// -----------------------------------------------------------------------------

func (d *sqlite) columnDefSQL(inlineRef bool) func(*ast.ColumnDef, string) string {
	return func(col *ast.ColumnDef, tableName string) string {
		return buildColumnDefSQL(col, ColumnDefConfig{
			QuoteIdent:  d.QuoteIdent,
			TypeSQL:     d.ColumnTypeSQL,
			DefaultSQL:  d.DefaultSQL,
			TableName:   tableName,
			NamedUnique: true,
			EnumCheck: func(col *ast.ColumnDef, tableName string) string {
				return buildEnumCheckSQL(col, tableName, d.QuoteIdent)
			},
			InlineReference: inlineRef,
		})
	}
}
