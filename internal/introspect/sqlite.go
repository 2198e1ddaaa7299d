package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
)

type sqliteIntrospector struct {
	q Querier
}

func (s *sqliteIntrospector) Dialect() string {
	return dialect.NameSQLite
}

func (s *sqliteIntrospector) TableNames(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.q, "list tables", "", `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
}

func (s *sqliteIntrospector) TableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	cols, err := s.columns(ctx, table)
	if err != nil || len(cols) == 0 {
		return nil, err
	}

	unique, err := s.uniqueColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	markUnique(cols, unique)

	// SQLite has no catalog for CHECK constraints; recover them from the DDL.
	ddl, err := queryStrings(ctx, s.q, "read table sql", table,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err != nil {
		return nil, err
	}
	if len(ddl) > 0 {
		setEnums(cols, parseCheckEnums(ddl[0]))
	}

	return cols, nil
}

func (s *sqliteIntrospector) columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect columns", table)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			name, native string
			notNull, pk  int
			def          sql.NullString
		)
		if err := rows.Scan(&name, &native, &notNull, &def, &pk); err != nil {
			return nil, alerr.WrapSQL(err, "scan column", table)
		}

		col := ColumnInfo{
			Name:       name,
			NativeType: native,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		}
		if def.Valid {
			col.Default = &def.String
		}
		cols = append(cols, col)
	}

	return cols, rows.Err()
}

// uniqueColumns returns columns covered by a single-column UNIQUE constraint.
// Index names are collected before index_info is queried; nested cursors
// would deadlock a single-connection pool.
func (s *sqliteIntrospector) uniqueColumns(ctx context.Context, table string) ([]string, error) {
	indexes, err := queryStrings(ctx, s.q, "list unique indexes", table,
		`SELECT name FROM pragma_index_list(?) WHERE "unique" = 1 AND origin = 'u' ORDER BY name`, table)
	if err != nil {
		return nil, err
	}

	var cols []string
	for _, idx := range indexes {
		names, err := queryStrings(ctx, s.q, "read index columns", table,
			`SELECT name FROM pragma_index_info(?) ORDER BY seqno`, idx)
		if err != nil {
			return nil, err
		}
		if len(names) == 1 {
			cols = append(cols, names[0])
		}
	}
	return cols, nil
}

func (s *sqliteIntrospector) TableForeignKeys(ctx context.Context, table string) ([]ForeignKeyInfo, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, alerr.WrapSQL(err, "introspect foreign keys", table)
	}
	defer rows.Close()

	acc := newFKAccumulator()
	for rows.Next() {
		var (
			id                           int
			refTable, from, onUpd, onDel string
			to                           sql.NullString
		)
		if err := rows.Scan(&id, &refTable, &from, &to, &onUpd, &onDel); err != nil {
			return nil, alerr.WrapSQL(err, "scan foreign key", table)
		}
		// SQLite does not keep constraint names in the catalog.
		acc.add(fmt.Sprintf("fk_%s_%d", table, id), from, refTable, to.String, onDel, onUpd)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, "introspect foreign keys", table)
	}

	return acc.values(), nil
}

func (s *sqliteIntrospector) ColumnType(col ColumnInfo) ast.Type {
	return MapSQLiteType(col)
}
