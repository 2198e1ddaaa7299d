package dialect

import (
	"fmt"
	"strings"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// mysql implements the Dialect interface for MySQL 8 and MariaDB.
// Enums use the native ENUM type, UNIQUE and FOREIGN KEY constraints are
// table-level because MySQL ignores inline REFERENCES.
type mysql struct{}

// MySQL returns the MySQL dialect implementation.
func MySQL() Dialect {
	return &mysql{}
}

func (d *mysql) Name() string {
	return NameMySQL
}

// -----------------------------------------------------------------------------
// Type mappings
// -----------------------------------------------------------------------------

func (d *mysql) TextType() string {
	return "TEXT"
}

func (d *mysql) VarcharType(length int) string {
	return fmt.Sprintf("VARCHAR(%d)", length)
}

func (d *mysql) IntegerType() string {
	return "INT"
}

func (d *mysql) NumericType(precision, scale int) string {
	return fmt.Sprintf("DECIMAL(%d, %d)", precision, scale)
}

func (d *mysql) UUIDType() string {
	return "CHAR(36)"
}

func (d *mysql) TimestampType() string {
	return "DATETIME"
}

func (d *mysql) BooleanType() string {
	return "TINYINT(1)"
}

func (d *mysql) ColumnTypeSQL(t ast.Type) string {
	if t.IsEnum() {
		var b strings.Builder
		b.WriteString("ENUM(")
		writeLiteralList(&b, t.Enum)
		b.WriteString(")")
		return b.String()
	}
	return buildColumnTypeSQL(t, d)
}

func (d *mysql) DefaultSQL(def *ast.Default) string {
	return buildDefaultValueSQL(def, IntegerBooleans, "CURRENT_TIMESTAMP")
}

// -----------------------------------------------------------------------------
// Identifiers
// -----------------------------------------------------------------------------

func (d *mysql) QuoteIdent(name string) string {
	return strutil.QuoteIdent(name, '`')
}

func (d *mysql) Placeholder(index int) string {
	return "?"
}

// -----------------------------------------------------------------------------
// Feature support
// -----------------------------------------------------------------------------

// SupportsTransactionalDDL is false: MySQL commits implicitly around DDL.
func (d *mysql) SupportsTransactionalDDL() bool {
	return false
}

func (d *mysql) SupportsAlterColumn() bool {
	return true
}

// -----------------------------------------------------------------------------
// SQL generation
// -----------------------------------------------------------------------------

func (d *mysql) CreateTableSQL(op *ast.CreateTable) (string, error) {
	return buildCreateTableSQL(op, d.QuoteIdent, d.columnDefSQL, d.uniqueConstraints)
}

func (d *mysql) DropTableSQL(op *ast.DropTable) (string, error) {
	return buildDropTableSQL(op, d.QuoteIdent)
}

func (d *mysql) AddColumnSQL(op *ast.AddColumn) (string, error) {
	stmt, err := buildAddColumnSQL(op, d.QuoteIdent, d.columnDefSQL)
	if err != nil {
		return "", err
	}
	col := op.Column
	if col.Unique && !col.PrimaryKey {
		stmt += fmt.Sprintf(", ADD CONSTRAINT %s UNIQUE (%s)",
			d.QuoteIdent(uniqueConstraintName(op.Table(), col.Name)), d.QuoteIdent(col.Name))
	}
	if col.Ref != nil && col.Ref.Resolved() {
		stmt += ", ADD " + buildForeignKeyConstraintSQL(referenceFK(op.Table(), col), d.QuoteIdent)
	}
	return stmt, nil
}

func (d *mysql) DropColumnSQL(op *ast.DropColumn) (string, error) {
	return buildDropColumnSQL(op, d.QuoteIdent)
}

// AlterColumnSQL uses MODIFY COLUMN with the full declared definition for
// type, nullability and default changes.
func (d *mysql) AlterColumnSQL(op *ast.AlterColumn) ([]string, error) {
	var statements []string
	table := op.Table()
	tableName := d.QuoteIdent(table)

	if op.Changes.Type || op.Changes.Nullable || op.Changes.Default {
		statements = append(statements, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s",
			tableName, d.columnDefSQL(op.To, table)))
	}

	if op.Changes.Unique {
		name := d.QuoteIdent(uniqueConstraintName(table, op.To.Name))
		if op.To.Unique {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
				tableName, name, d.QuoteIdent(op.To.Name)))
		} else {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", tableName, name))
		}
	}

	if op.Changes.Reference {
		if op.From.Ref != nil {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s",
				tableName, d.QuoteIdent(foreignKeyName(table, op.To.Name))))
		}
		if op.To.Ref != nil && op.To.Ref.Resolved() {
			statements = append(statements, fmt.Sprintf("ALTER TABLE %s ADD %s",
				tableName, buildForeignKeyConstraintSQL(referenceFK(table, op.To), d.QuoteIdent)))
		}
	}

	return statements, nil
}

// -----------------------------------------------------------------------------
// Helper methods
// -----------------------------------------------------------------------------

func (d *mysql) columnDefSQL(col *ast.ColumnDef, tableName string) string {
	return buildColumnDefSQL(col, ColumnDefConfig{
		QuoteIdent: d.QuoteIdent,
		TypeSQL:    d.ColumnTypeSQL,
		DefaultSQL: d.defaultFor(col),
		TableName:  tableName,
	})
}

// defaultFor wraps literal defaults on TEXT columns in parentheses, which
// MySQL 8.0.13+ requires for BLOB/TEXT defaults.
func (d *mysql) defaultFor(col *ast.ColumnDef) func(*ast.Default) string {
	return func(def *ast.Default) string {
		sql := d.DefaultSQL(def)
		if col.Type.Kind == ast.KindText && def.Kind != ast.DefaultNow {
			return "(" + sql + ")"
		}
		return sql
	}
}

// uniqueConstraints renders named table-level UNIQUE constraints.
func (d *mysql) uniqueConstraints(t *ast.TableDef) []string {
	var clauses []string
	for _, col := range t.Columns {
		if col.Unique && !col.PrimaryKey {
			clauses = append(clauses, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)",
				d.QuoteIdent(uniqueConstraintName(t.Name, col.Name)), d.QuoteIdent(col.Name)))
		}
	}
	return clauses
}
