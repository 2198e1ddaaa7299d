package introspect

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
)

type postgresIntrospector struct {
	q Querier
}

func (p *postgresIntrospector) Dialect() string {
	return dialect.NamePostgres
}

func (p *postgresIntrospector) TableNames(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, p.q, "list tables", "", `
		SELECT tablename FROM pg_tables
		WHERE schemaname = current_schema()
		ORDER BY tablename
	`)
}

func (p *postgresIntrospector) TableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	cols, err := p.columns(ctx, table)
	if err != nil || len(cols) == 0 {
		return nil, err
	}

	unique, err := queryStrings(ctx, p.q, "introspect unique constraints", table, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'UNIQUE'
			AND tc.table_schema = current_schema()
			AND tc.table_name = $1
			AND (
				SELECT COUNT(*) FROM information_schema.key_column_usage k2
				WHERE k2.constraint_name = tc.constraint_name
					AND k2.table_schema = tc.table_schema
			) = 1
	`, table)
	if err != nil {
		return nil, err
	}
	markUnique(cols, unique)

	enums, err := p.enumChecks(ctx, table)
	if err != nil {
		return nil, err
	}
	setEnums(cols, enums)

	return cols, nil
}

func (p *postgresIntrospector) columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			COALESCE(pk.is_pk, FALSE) AS is_primary_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name, TRUE AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.table_name = $1
				AND tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = current_schema()
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = current_schema()
			AND c.table_name = $1
		ORDER BY c.ordinal_position
	`, table)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect columns", table)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			col                      ColumnInfo
			isNullable               string
			def                      sql.NullString
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &col.NativeType, &isNullable, &def,
			&length, &precision, &scale, &col.PrimaryKey); err != nil {
			return nil, alerr.WrapSQL(err, "scan column", table)
		}

		col.Nullable = isNullable == "YES"
		col.Length = int(length.Int64)
		col.Precision = int(precision.Int64)
		col.Scale = int(scale.Int64)
		if def.Valid {
			col.Default = &def.String
		}
		cols = append(cols, col)
	}

	return cols, rows.Err()
}

// pgCheckColumnRe finds the column a check definition constrains. Postgres
// rewrites IN lists as (col)::text = ANY (ARRAY[...]).
var pgCheckColumnRe = regexp.MustCompile(`^CHECK \(+"?([A-Za-z_][A-Za-z0-9_]*)"?\)?(?:::[a-z ]+)?\s*(?:=\s*ANY|IN)\b`)

// enumChecks recovers enum values from CHECK constraints of the form
// col IN ('a', 'b').
func (p *postgresIntrospector) enumChecks(ctx context.Context, table string) (map[string][]string, error) {
	defs, err := queryStrings(ctx, p.q, "introspect check constraints", table, `
		SELECT pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = rel.relnamespace
		WHERE con.contype = 'c'
			AND rel.relname = $1
			AND ns.nspname = current_schema()
		ORDER BY con.conname
	`, table)
	if err != nil {
		return nil, err
	}

	enums := make(map[string][]string)
	for _, def := range defs {
		m := pgCheckColumnRe.FindStringSubmatch(strings.TrimSpace(def))
		if m == nil {
			continue
		}
		if values := parseQuotedLiterals(def); len(values) > 0 {
			enums[m[1]] = values
		}
	}
	return enums, nil
}

func (p *postgresIntrospector) TableForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints AS rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_name = $1
			AND tc.table_schema = current_schema()
		ORDER BY tc.constraint_name, kcu.ordinal_position
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

func (p *postgresIntrospector) ColumnType(col ColumnInfo) ast.Type {
	return MapPostgresType(col)
}
