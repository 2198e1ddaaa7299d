package xpdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
)

// Row maps logical column keys to values.
type Row map[string]any

// Where holds equality conditions by logical key, joined with AND.
// A nil value matches NULL.
type Where map[string]any

// BoundTable builds and runs queries against one declared table.
type BoundTable struct {
	db  *DB
	def *ast.TableDef
}

// Name returns the SQL table name.
func (t *BoundTable) Name() string {
	return t.def.Name
}

// Def returns the declared table.
func (t *BoundTable) Def() *TableDef {
	return t.def
}

// pick returns the declared columns named in m, in declaration order. Keys
// may be logical keys or SQL names; anything else is an UnknownColumnError.
func (t *BoundTable) pick(m map[string]any) ([]*ast.ColumnDef, []any, error) {
	for k := range m {
		if t.def.Col(k) == nil {
			return nil, nil, t.unknown(k)
		}
	}
	var cols []*ast.ColumnDef
	var vals []any
	for _, c := range t.def.Columns {
		if v, ok := m[c.Key]; ok {
			cols, vals = append(cols, c), append(vals, v)
		} else if v, ok := m[c.Name]; ok {
			cols, vals = append(cols, c), append(vals, v)
		}
	}
	return cols, vals, nil
}

func (t *BoundTable) unknown(key string) error {
	e := &UnknownColumnError{Table: t.def.Name, Key: key}
	if match, ok := alerr.FindClosestMatch(key, t.def.Keys()); ok {
		e.Suggestion = match
	}
	return e
}

func (t *BoundTable) quote(name string) string {
	return t.db.dialect.QuoteIdent(name)
}

// where renders a WHERE clause starting at placeholder n.
func (t *BoundTable) where(w Where, n int) (string, []any, error) {
	cols, vals, err := t.pick(w)
	if err != nil || len(cols) == 0 {
		return "", nil, err
	}
	parts := make([]string, 0, len(cols))
	var args []any
	for i, c := range cols {
		if vals[i] == nil {
			parts = append(parts, t.quote(c.Name)+" IS NULL")
			continue
		}
		n++
		parts = append(parts, t.quote(c.Name)+" = "+t.db.dialect.Placeholder(n))
		args = append(args, vals[i])
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// exec runs a statement on the queue and returns the affected row count.
func (t *BoundTable) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	var affected int64
	err := t.db.queue.Do(ctx, func(ctx context.Context) error {
		res, err := t.db.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, t.queryError(op, err)
	}
	return affected, nil
}

func (t *BoundTable) queryError(op string, err error) error {
	if errors.Is(err, ErrClosed) {
		return err
	}
	return fmt.Errorf("xpdb: %s %q: %w", op, t.def.Name, err)
}

// ----------------------------------------------------------------------------
// INSERT
// ----------------------------------------------------------------------------

// InsertQuery inserts one row.
type InsertQuery struct {
	t      *BoundTable
	values Row
}

// Insert builds an INSERT. A missing or nil uuid primary key is filled with a
// random v4 UUID, so ToSQL and Exec see the same value.
func (t *BoundTable) Insert(values Row) *InsertQuery {
	row := make(Row, len(values)+1)
	for k, v := range values {
		row[k] = v
	}
	if pk := t.def.PrimaryKey(); pk != nil && pk.Type.Kind == ast.KindUUID {
		if row[pk.Key] == nil && row[pk.Name] == nil {
			delete(row, pk.Name)
			row[pk.Key] = uuid.NewString()
		}
	}
	return &InsertQuery{t: t, values: row}
}

// Values returns the row as it will be inserted, generated keys included.
func (q *InsertQuery) Values() Row {
	return q.values
}

// ToSQL renders the statement without executing it.
func (q *InsertQuery) ToSQL() (string, []any, error) {
	cols, vals, err := q.t.pick(q.values)
	if err != nil {
		return "", nil, err
	}
	table := q.t.quote(q.t.def.Name)
	if len(cols) == 0 {
		if q.t.db.dialect.Name() == "mysql" {
			return "INSERT INTO " + table + " () VALUES ()", nil, nil
		}
		return "INSERT INTO " + table + " DEFAULT VALUES", nil, nil
	}

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = q.t.quote(c.Name)
		marks[i] = q.t.db.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", "))
	return query, vals, nil
}

// Exec inserts the row and returns it.
func (q *InsertQuery) Exec(ctx context.Context) (Row, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := q.t.exec(ctx, "insert into", query, args); err != nil {
		return nil, err
	}
	return q.values, nil
}

// ----------------------------------------------------------------------------
// SELECT
// ----------------------------------------------------------------------------

type orderTerm struct {
	key  string
	desc bool
}

// SelectQuery reads rows.
type SelectQuery struct {
	t      *BoundTable
	keys   []string
	where  Where
	order  []orderTerm
	limit  int
	offset int
}

// Select builds a SELECT of the given keys, or of every column when none are given.
func (t *BoundTable) Select(keys ...string) *SelectQuery {
	return &SelectQuery{t: t, keys: keys, where: Where{}}
}

// Where adds equality conditions.
func (q *SelectQuery) Where(w Where) *SelectQuery {
	for k, v := range w {
		q.where[k] = v
	}
	return q
}

// OrderBy sorts ascending by key. Later calls break ties.
func (q *SelectQuery) OrderBy(key string) *SelectQuery {
	q.order = append(q.order, orderTerm{key: key})
	return q
}

// OrderByDesc sorts descending by key.
func (q *SelectQuery) OrderByDesc(key string) *SelectQuery {
	q.order = append(q.order, orderTerm{key: key, desc: true})
	return q
}

// Limit caps the number of rows. Zero means no limit.
func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

// Offset skips rows. It needs a Limit on MySQL.
func (q *SelectQuery) Offset(n int) *SelectQuery {
	q.offset = n
	return q
}

func (q *SelectQuery) columns() ([]*ast.ColumnDef, error) {
	if len(q.keys) == 0 {
		return q.t.def.Columns, nil
	}
	cols := make([]*ast.ColumnDef, len(q.keys))
	for i, k := range q.keys {
		c := q.t.def.Col(k)
		if c == nil {
			return nil, q.t.unknown(k)
		}
		cols[i] = c
	}
	return cols, nil
}

// ToSQL renders the statement without executing it.
func (q *SelectQuery) ToSQL() (string, []any, error) {
	query, args, _, err := q.build()
	return query, args, err
}

func (q *SelectQuery) build() (string, []any, []*ast.ColumnDef, error) {
	cols, err := q.columns()
	if err != nil {
		return "", nil, nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = q.t.quote(c.Name)
	}

	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(names, ", ") + " FROM " + q.t.quote(q.t.def.Name))

	where, args, err := q.t.where(q.where, 0)
	if err != nil {
		return "", nil, nil, err
	}
	b.WriteString(where)

	if len(q.order) > 0 {
		terms := make([]string, len(q.order))
		for i, o := range q.order {
			c := q.t.def.Col(o.key)
			if c == nil {
				return "", nil, nil, q.t.unknown(o.key)
			}
			terms[i] = q.t.quote(c.Name)
			if o.desc {
				terms[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
	}
	return b.String(), args, cols, nil
}

// All runs the query and returns every row keyed by logical key.
func (q *SelectQuery) All(ctx context.Context) ([]Row, error) {
	query, args, cols, err := q.build()
	if err != nil {
		return nil, err
	}

	var out []Row
	err = q.t.db.queue.Do(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := q.t.db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			dest := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range dest {
				ptrs[i] = &dest[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			row := make(Row, len(cols))
			for i, c := range cols {
				row[c.Key] = scanValue(c, dest[i])
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, q.t.queryError("select from", err)
	}
	return out, nil
}

// One returns the first row, or sql.ErrNoRows.
func (q *SelectQuery) One(ctx context.Context) (Row, error) {
	rows, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows[0], nil
}

// scanValue normalises driver values: text arrives as string and booleans
// stored as integers come back as bool.
func scanValue(c *ast.ColumnDef, v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int64:
		if c.Type.Kind == ast.KindBoolean {
			return x != 0
		}
	}
	return v
}

// ----------------------------------------------------------------------------
// UPDATE / DELETE
// ----------------------------------------------------------------------------

// UpdateQuery changes rows.
type UpdateQuery struct {
	t      *BoundTable
	values Row
	where  Where
}

// Update builds an UPDATE setting values. Without Where it touches every row.
func (t *BoundTable) Update(values Row) *UpdateQuery {
	return &UpdateQuery{t: t, values: values, where: Where{}}
}

// Where adds equality conditions.
func (q *UpdateQuery) Where(w Where) *UpdateQuery {
	for k, v := range w {
		q.where[k] = v
	}
	return q
}

// ToSQL renders the statement without executing it.
func (q *UpdateQuery) ToSQL() (string, []any, error) {
	cols, vals, err := q.t.pick(q.values)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("xpdb: update %q: no values to set", q.t.def.Name)
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = q.t.quote(c.Name) + " = " + q.t.db.dialect.Placeholder(i+1)
	}
	where, args, err := q.t.where(q.where, len(cols))
	if err != nil {
		return "", nil, err
	}
	query := "UPDATE " + q.t.quote(q.t.def.Name) + " SET " + strings.Join(sets, ", ") + where
	return query, append(vals, args...), nil
}

// Exec runs the update and returns the number of rows changed.
func (q *UpdateQuery) Exec(ctx context.Context) (int64, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	return q.t.exec(ctx, "update", query, args)
}

// DeleteQuery removes rows.
type DeleteQuery struct {
	t     *BoundTable
	where Where
}

// Delete builds a DELETE. Without Where it removes every row.
func (t *BoundTable) Delete() *DeleteQuery {
	return &DeleteQuery{t: t, where: Where{}}
}

// Where adds equality conditions.
func (q *DeleteQuery) Where(w Where) *DeleteQuery {
	for k, v := range w {
		q.where[k] = v
	}
	return q
}

// ToSQL renders the statement without executing it.
func (q *DeleteQuery) ToSQL() (string, []any, error) {
	where, args, err := q.t.where(q.where, 0)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + q.t.quote(q.t.def.Name) + where, args, nil
}

// Exec runs the delete and returns the number of rows removed.
func (q *DeleteQuery) Exec(ctx context.Context) (int64, error) {
	query, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	return q.t.exec(ctx, "delete from", query, args)
}

// ----------------------------------------------------------------------------
// Errors
// ----------------------------------------------------------------------------

// sentinelError carries its own message and matches a sentinel with errors.Is.
type sentinelError struct {
	msg      string
	sentinel error
}

func (e *sentinelError) Error() string { return e.msg }

func (e *sentinelError) Unwrap() error { return e.sentinel }

func wrapf(sentinel error, format string, args ...any) error {
	return &sentinelError{msg: fmt.Sprintf(format, args...), sentinel: sentinel}
}
