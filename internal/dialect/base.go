package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// QuoteIdentFunc is a function that quotes an identifier.
type QuoteIdentFunc func(name string) string

// writeQuotedList writes comma-separated quoted identifiers to the builder.
func writeQuotedList(b *strings.Builder, items []string, quote QuoteIdentFunc) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(item))
	}
}

// TypeMapper provides type-specific SQL generation.
type TypeMapper interface {
	TextType() string
	VarcharType(length int) string
	IntegerType() string
	NumericType(precision, scale int) string
	UUIDType() string
	TimestampType() string
	BooleanType() string
}

// buildColumnTypeSQL maps a logical type with the type mapper. Enum columns
// are handled by the caller because the dialects disagree on them.
func buildColumnTypeSQL(t ast.Type, mapper TypeMapper) string {
	switch t.Kind {
	case ast.KindText:
		return mapper.TextType()
	case ast.KindVarchar:
		return mapper.VarcharType(t.Length)
	case ast.KindInteger:
		return mapper.IntegerType()
	case ast.KindNumeric:
		return mapper.NumericType(t.Precision, t.Scale)
	case ast.KindUUID:
		return mapper.UUIDType()
	case ast.KindTimestamp:
		return mapper.TimestampType()
	case ast.KindBoolean:
		return mapper.BooleanType()
	default:
		return strings.ToUpper(t.Raw)
	}
}

// BooleanLiterals holds the true/false literals for a dialect.
type BooleanLiterals struct {
	True  string
	False string
}

// PostgresBooleans uses TRUE/FALSE.
var PostgresBooleans = BooleanLiterals{True: "TRUE", False: "FALSE"}

// IntegerBooleans uses 1/0 (SQLite, MySQL).
var IntegerBooleans = BooleanLiterals{True: "1", False: "0"}

// buildDefaultValueSQL renders a default. now and boolean spelling differ
// between dialects.
func buildDefaultValueSQL(d *ast.Default, bools BooleanLiterals, now string) string {
	if d == nil {
		return "NULL"
	}
	switch d.Kind {
	case ast.DefaultNow:
		return now
	case ast.DefaultExpr:
		return d.Expr
	}

	switch v := d.Value.(type) {
	case string:
		return strutil.QuoteLiteral(v)
	case bool:
		if v {
			return bools.True
		}
		return bools.False
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return "NULL"
	default:
		return strutil.QuoteLiteral(fmt.Sprintf("%v", v))
	}
}

// buildForeignKeyConstraintSQL generates a table-level foreign key clause.
func buildForeignKeyConstraintSQL(fk *ast.ForeignKeyDef, quoteIdent QuoteIdentFunc) string {
	var b strings.Builder

	if fk.Name != "" {
		b.WriteString("CONSTRAINT ")
		b.WriteString(quoteIdent(fk.Name))
		b.WriteString(" ")
	}

	b.WriteString("FOREIGN KEY (")
	writeQuotedList(&b, fk.Columns, quoteIdent)
	b.WriteString(") REFERENCES ")
	b.WriteString(quoteIdent(fk.RefTable))
	b.WriteString(" (")
	writeQuotedList(&b, fk.RefColumns, quoteIdent)
	b.WriteString(")")
	writeFKActions(&b, fk.OnDelete, fk.OnUpdate)

	return b.String()
}

func writeFKActions(b *strings.Builder, onDelete, onUpdate string) {
	if a, _ := ast.NormalizeFKAction(onDelete); a != "" {
		b.WriteString(" ON DELETE ")
		b.WriteString(a)
	}
	if a, _ := ast.NormalizeFKAction(onUpdate); a != "" {
		b.WriteString(" ON UPDATE ")
		b.WriteString(a)
	}
}

// ColumnDefConfig holds all callbacks and config for buildColumnDefSQL.
type ColumnDefConfig struct {
	QuoteIdent QuoteIdentFunc
	TypeSQL    func(t ast.Type) string
	DefaultSQL func(d *ast.Default) string
	// TableName is used for constraint naming.
	TableName string
	// NamedUnique emits CONSTRAINT uniq_<table>_<col> UNIQUE; otherwise the
	// column-level UNIQUE keyword is left to the caller.
	NamedUnique bool
	// EnumCheck renders a CHECK constraint for enum columns ("" when not needed).
	EnumCheck func(col *ast.ColumnDef, tableName string) string
	// InlineReference appends REFERENCES target(col) to the column.
	InlineReference bool
	// NamedReference names the inline reference fk_<table>_<col>, the name
	// CREATE TABLE gives it.
	NamedReference bool
}

// buildColumnDefSQL generates the SQL for a column definition.
// Order: type, PRIMARY KEY, NOT NULL, UNIQUE, DEFAULT, CHECK, REFERENCES.
func buildColumnDefSQL(col *ast.ColumnDef, cfg ColumnDefConfig) string {
	var b strings.Builder

	b.WriteString(cfg.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(cfg.TypeSQL(col.Type))

	if col.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !col.IsNullable() {
		b.WriteString(" NOT NULL")
	}
	if col.Unique && !col.PrimaryKey && cfg.NamedUnique {
		b.WriteString(" CONSTRAINT ")
		b.WriteString(cfg.QuoteIdent(uniqueConstraintName(cfg.TableName, col.Name)))
		b.WriteString(" UNIQUE")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(cfg.DefaultSQL(col.Default))
	}
	if cfg.EnumCheck != nil {
		b.WriteString(cfg.EnumCheck(col, cfg.TableName))
	}
	if cfg.InlineReference && col.Ref != nil && col.Ref.Resolved() {
		if cfg.NamedReference {
			b.WriteString(" CONSTRAINT ")
			b.WriteString(cfg.QuoteIdent(foreignKeyName(cfg.TableName, col.Name)))
		}
		b.WriteString(" REFERENCES ")
		b.WriteString(cfg.QuoteIdent(col.Ref.Table))
		b.WriteString("(")
		b.WriteString(cfg.QuoteIdent(col.Ref.Column))
		b.WriteString(")")
		writeFKActions(&b, col.Ref.OnDelete, col.Ref.OnUpdate)
	}

	return b.String()
}

// buildEnumCheckSQL renders CONSTRAINT chk_<table>_<col>_enum CHECK (col IN (...)).
func buildEnumCheckSQL(col *ast.ColumnDef, tableName string, quoteIdent QuoteIdentFunc) string {
	if !col.Type.IsEnum() {
		return ""
	}
	var b strings.Builder
	b.WriteString(" CONSTRAINT ")
	b.WriteString(quoteIdent(enumCheckName(tableName, col.Name)))
	b.WriteString(" CHECK (")
	b.WriteString(enumCheckExpr(col, quoteIdent))
	b.WriteString(")")
	return b.String()
}

func enumCheckExpr(col *ast.ColumnDef, quoteIdent QuoteIdentFunc) string {
	var b strings.Builder
	b.WriteString(quoteIdent(col.Name))
	b.WriteString(" IN (")
	writeLiteralList(&b, col.Type.Enum)
	b.WriteString(")")
	return b.String()
}

func writeLiteralList(b *strings.Builder, values []string) {
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strutil.QuoteLiteral(v))
	}
}

// buildCreateTableSQL generates CREATE TABLE SQL using provided helper functions.
// Foreign keys are emitted as named table-level constraints after the columns.
func buildCreateTableSQL(op *ast.CreateTable, quoteIdent QuoteIdentFunc, columnDef func(*ast.ColumnDef, string) string, extra func(*ast.TableDef) []string) (string, error) {
	var b strings.Builder
	tableName := op.Table()

	b.WriteString("CREATE TABLE ")
	if op.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quoteIdent(tableName))
	b.WriteString(" (\n")

	for i, col := range op.Def.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(columnDef(col, tableName))
	}

	if extra != nil {
		for _, clause := range extra(op.Def) {
			b.WriteString(",\n  ")
			b.WriteString(clause)
		}
	}

	for _, fk := range op.Def.ForeignKeys() {
		b.WriteString(",\n  ")
		b.WriteString(buildForeignKeyConstraintSQL(fk, quoteIdent))
	}

	b.WriteString("\n)")
	return b.String(), nil
}

// buildDropTableSQL generates DROP TABLE SQL.
func buildDropTableSQL(op *ast.DropTable, quoteIdent QuoteIdentFunc) (string, error) {
	var b strings.Builder
	b.WriteString("DROP TABLE ")
	if op.IfExists {
		b.WriteString("IF EXISTS ")
	}
	b.WriteString(quoteIdent(op.Table()))
	return b.String(), nil
}

// buildAddColumnSQL generates ALTER TABLE ADD COLUMN SQL.
func buildAddColumnSQL(op *ast.AddColumn, quoteIdent QuoteIdentFunc, columnDef func(*ast.ColumnDef, string) string) (string, error) {
	var b strings.Builder
	tableName := op.Table()
	b.WriteString("ALTER TABLE ")
	b.WriteString(quoteIdent(tableName))
	b.WriteString(" ADD COLUMN ")
	b.WriteString(columnDef(op.Column, tableName))
	return b.String(), nil
}

// buildDropColumnSQL generates ALTER TABLE DROP COLUMN SQL.
func buildDropColumnSQL(op *ast.DropColumn, quoteIdent QuoteIdentFunc) (string, error) {
	var b strings.Builder
	b.WriteString("ALTER TABLE ")
	b.WriteString(quoteIdent(op.Table()))
	b.WriteString(" DROP COLUMN ")
	b.WriteString(quoteIdent(op.Name))
	return b.String(), nil
}

// uniqueConstraintName generates a unique constraint name: uniq_table_col
func uniqueConstraintName(table, col string) string {
	return strutil.ConstraintName("uniq", table, col)
}

// enumCheckName generates an enum check constraint name: chk_table_col_enum
func enumCheckName(table, col string) string {
	return strutil.ConstraintName("chk", table, col, "enum")
}

// foreignKeyName generates a foreign key constraint name: fk_table_col
func foreignKeyName(table, col string) string {
	return strutil.ConstraintName("fk", table, col)
}

// referenceFK builds the single-column foreign key for a column's reference.
func referenceFK(table string, col *ast.ColumnDef) *ast.ForeignKeyDef {
	return &ast.ForeignKeyDef{
		Name:       foreignKeyName(table, col.Name),
		Columns:    []string{col.Name},
		RefTable:   col.Ref.Table,
		RefColumns: []string{col.Ref.Column},
		OnDelete:   col.Ref.OnDelete,
		OnUpdate:   col.Ref.OnUpdate,
	}
}
