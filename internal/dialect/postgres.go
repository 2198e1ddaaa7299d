package dialect

import (
	"fmt"
	"strconv"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// postgres implements the Dialect interface for PostgreSQL.
type postgres struct{}

// Postgres returns the PostgreSQL dialect implementation.
func Postgres() Dialect {
	return &postgres{}
}

func (d *postgres) Name() string {
	return NamePostgres
}

// -----------------------------------------------------------------------------
// Type mappings
// -----------------------------------------------------------------------------

func (d *postgres) TextType() string {
	return "TEXT"
}

func (d *postgres) VarcharType(length int) string {
	return fmt.Sprintf("VARCHAR(%d)", length)
}

func (d *postgres) IntegerType() string {
	return "INTEGER"
}

func (d *postgres) NumericType(precision, scale int) string {
	return fmt.Sprintf("NUMERIC(%d, %d)", precision, scale)
}

func (d *postgres) UUIDType() string {
	return "UUID"
}

func (d *postgres) TimestampType() string {
	return "TIMESTAMPTZ"
}

func (d *postgres) BooleanType() string {
	return "BOOLEAN"
}

func (d *postgres) ColumnTypeSQL(t ast.Type) string {
	return buildColumnTypeSQL(t, d)
}

func (d *postgres) DefaultSQL(def *ast.Default) string {
	return buildDefaultValueSQL(def, PostgresBooleans, "NOW()")
}

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

func (d *postgres) QuoteIdent(name string) string {
	return strutil.QuoteIdent(name, '"')
}

func (d *postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

// -----------------------------------------------------------------------------
// Feature support
// -----------------------------------------------------------------------------

func (d *postgres) SupportsTransactionalDDL() bool {
	return true
}

func (d *postgres) SupportsAlterColumn() bool {
	return true
}

// -----------------------------------------------------------------------------
// SQL generation
// -----------------------------------------------------------------------------

func (d *postgres) CreateTableSQL(op *ast.CreateTable) (string, error) {
	return buildCreateTableSQL(op, d.QuoteIdent, d.columnDefSQL(false), nil)
}

func (d *postgres) DropTableSQL(op *ast.DropTable) (string, error) {
	return buildDropTableSQL(op, d.QuoteIdent)
}

func (d *postgres) AddColumnSQL(op *ast.AddColumn) (string, error) {
	return buildAddColumnSQL(op, d.QuoteIdent, d.columnDefSQL(true))
}

func (d *postgres) DropColumnSQL(op *ast.DropColumn) (string, error) {
	return buildDropColumnSQL(op, d.QuoteIdent)
}

func (d *postgres) AlterColumnSQL(op *ast.AlterColumn) ([]string, error) {
	var statements []string
	table := op.Table()
	tableName := d.QuoteIdent(table)
	colName := d.QuoteIdent(op.To.Name)
	alter := func(format string, args ...any) {
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s ", tableName)+fmt.Sprintf(format, args...))
	}

	if op.Changes.Type {
		if !sameStorage(op.From.Type, op.To.Type) {
			sqlType := d.ColumnTypeSQL(op.To.Type)
			alter("ALTER COLUMN %s TYPE %s USING %s::%s", colName, sqlType, colName, sqlType)
		}
		if op.From.Type.IsEnum() {
			alter("DROP CONSTRAINT IF EXISTS %s", d.QuoteIdent(enumCheckName(table, op.To.Name)))
		}
		if op.To.Type.IsEnum() {
			alter("ADD CONSTRAINT %s CHECK (%s)", d.QuoteIdent(enumCheckName(table, op.To.Name)), enumCheckExpr(op.To, d.QuoteIdent))
		}
	}

	if op.Changes.Nullable {
		if op.To.IsNullable() {
			alter("ALTER COLUMN %s DROP NOT NULL", colName)
		} else {
			alter("ALTER COLUMN %s SET NOT NULL", colName)
		}
	}

	if op.Changes.Default {
		if op.To.Default == nil {
			alter("ALTER COLUMN %s DROP DEFAULT", colName)
		} else {
			alter("ALTER COLUMN %s SET DEFAULT %s", colName, d.DefaultSQL(op.To.Default))
		}
	}

	if op.Changes.Unique {
		name := d.QuoteIdent(uniqueConstraintName(table, op.To.Name))
		if op.To.Unique {
			alter("ADD CONSTRAINT %s UNIQUE (%s)", name, colName)
		} else {
			alter("DROP CONSTRAINT IF EXISTS %s", name)
		}
	}

	if op.Changes.Reference {
		if op.From.Ref != nil {
			alter("DROP CONSTRAINT IF EXISTS %s", d.QuoteIdent(foreignKeyName(table, op.To.Name)))
		}
		if op.To.Ref != nil && op.To.Ref.Resolved() {
			alter("ADD %s", buildForeignKeyConstraintSQL(referenceFK(table, op.To), d.QuoteIdent))
		}
	}

	return statements, nil
}

// -----------------------------------------------------------------------------
// Helper methods
// -----------------------------------------------------------------------------

// columnDefSQL returns the column renderer. References are inlined only for
// ADD COLUMN; CREATE TABLE uses table-level constraints. Both carry the same
// constraint name so a later reference change can drop it.
func (d *postgres) columnDefSQL(inlineRef bool) func(*ast.ColumnDef, string) string {
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
			NamedReference:  true,
		})
	}
}

// sameStorage reports whether two types share a native type, ignoring enum values.
func sameStorage(a, b ast.Type) bool {
	a.Enum, b.Enum = nil, nil
	return a.Equal(b)
}
