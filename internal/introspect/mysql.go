package introspect

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/strutil"
)

type mysqlIntrospector struct {
	q Querier
}

func (m *mysqlIntrospector) Dialect() string {
	return dialect.NameMySQL
}

func (m *mysqlIntrospector) TableNames(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, m.q, "list tables", "", `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
}

func (m *mysqlIntrospector) TableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	cols, err := m.columns(ctx, table)
	if err != nil || len(cols) == 0 {
		return nil, err
	}

	unique, err := queryStrings(ctx, m.q, "introspect unique constraints", table, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'UNIQUE'
			AND tc.table_schema = DATABASE()
			AND tc.table_name = ?
			AND (
				SELECT COUNT(*) FROM information_schema.key_column_usage k2
				WHERE k2.constraint_name = tc.constraint_name
					AND k2.table_schema = tc.table_schema
					AND k2.table_name = tc.table_name
			) = 1
	`, table)
	if err != nil {
		return nil, err
	}
	markUnique(cols, unique)

	return cols, nil
}

func (m *mysqlIntrospector) columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := m.q.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, column_default, column_key, extra
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect columns", table)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			col                    ColumnInfo
			isNullable, key, extra string
			def                    sql.NullString
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &isNullable, &def, &key, &extra); err != nil {
			return nil, alerr.WrapSQL(err, "scan column", table)
		}

		col.Nullable = isNullable == "YES"
		col.PrimaryKey = key == "PRI"
		if strings.HasPrefix(strings.ToLower(col.NativeType), "enum(") {
			col.Enum = parseQuotedLiterals(col.NativeType)
		}
		if def.Valid {
			d := mysqlDefault(def.String, extra)
			col.Default = &d
		}
		cols = append(cols, col)
	}

	return cols, rows.Err()
}

// mysqlDefault turns information_schema.columns.column_default back into SQL.
// MySQL 8 reports string literals unquoted; expression defaults are flagged
// DEFAULT_GENERATED in extra.
func mysqlDefault(raw, extra string) string {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED"):
		return raw
	case strings.HasPrefix(upper, "CURRENT_TIMESTAMP"), upper == "NULL":
		return raw
	case strings.HasPrefix(raw, "'"):
		return raw
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return raw
	}
	return strutil.QuoteLiteral(raw)
}

func (m *mysqlIntrospector) TableForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	rows, err := m.q.QueryContext(ctx, `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = DATABASE()
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`, table)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect foreign keys", table)
	}
	defer rows.Close()

	acc := newFKAccumulator()
	for rows.Next() {
		var name, column, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return nil, alerr.WrapSQL(err, "scan foreign key", table)
		}
		acc.add(name, column, refTable, refColumn, onDelete, onUpdate)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "introspect foreign keys", table)
	}

	return acc.values(), nil
}

func (m *mysqlIntrospector) ColumnType(col ColumnInfo) ast.Type {
	return MapMySQLType(col)
}
