package introspect

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// queryStrings runs a single-column query and collects the results. Rows are
// closed before returning so the caller can issue the next query on a
// single-connection pool.
func queryStrings(ctx context.Context, q Querier, op, table, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, alerr.WrapSQL(err, op, table)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, alerr.WrapSQL(err, "scan "+op, table)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, alerr.WrapSQL(err, op, table)
	}
	return out, nil
}

// markUnique flags the named columns as unique.
func markUnique(cols []ColumnInfo, names []string) {
	for _, name := range names {
		for i := range cols {
			if cols[i].Name == name {
				cols[i].Unique = true
			}
		}
	}
}

// setEnums attaches recovered enum values to their columns.
func setEnums(cols []ColumnInfo, enums map[string][]string) {
	for i := range cols {
		if values, ok := enums[cols[i].Name]; ok {
			cols[i].Enum = values
		}
	}
}

// -----------------------------------------------------------------------------
// Foreign key accumulation
// -----------------------------------------------------------------------------

// fkAccumulator merges catalog rows that belong to one composite foreign key.
type fkAccumulator struct {
	fks   map[string]*ForeignKeyInfo
	order []string
}

func newFKAccumulator() *fkAccumulator {
	return &fkAccumulator{fks: make(map[string]*ForeignKeyInfo)}
}

// add appends a column to the named key, creating it on first sight.
func (a *fkAccumulator) add(name, column, refTable, refColumn, onDelete, onUpdate string) {
	if fk, ok := a.fks[name]; ok {
		fk.Columns = append(fk.Columns, column)
		fk.RefColumns = append(fk.RefColumns, refColumn)
		return
	}
	a.fks[name] = &ForeignKeyInfo{
		Name:       name,
		Columns:    []string{column},
		RefTable:   refTable,
		RefColumns: []string{refColumn},
		OnDelete:   normalizeAction(onDelete),
		OnUpdate:   normalizeAction(onUpdate),
	}
	a.order = append(a.order, name)
}

// values returns the keys in insertion order.
func (a *fkAccumulator) values() []ForeignKeyInfo {
	out := make([]ForeignKeyInfo, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, *a.fks[name])
	}
	return out
}

// -----------------------------------------------------------------------------
// Native type parsing
// -----------------------------------------------------------------------------

var nativeTypeRe = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 ]*?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?\s*(?:unsigned)?\s*$`)

// splitNativeType splits "VARCHAR(255)" into ("VARCHAR", [255]) and
// "NUMERIC(10, 2)" into ("NUMERIC", [10, 2]). The base is uppercased.
func splitNativeType(native string) (base string, args []int, ok bool) {
	m := nativeTypeRe.FindStringSubmatch(native)
	if m == nil {
		return "", nil, false
	}
	base = strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
	for _, s := range m[2:] {
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return "", nil, false
		}
		args = append(args, n)
	}
	return base, args, true
}

var quotedLiteralRe = regexp.MustCompile(`'((?:[^']|'')*)'`)

// parseQuotedLiterals extracts every single-quoted literal from s, unescaping
// doubled quotes. It is used for CHECK (... IN (...)) bodies and MySQL ENUM types.
func parseQuotedLiterals(s string) []string {
	matches := quotedLiteralRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ReplaceAll(m[1], "''", "'"))
	}
	return out
}

// checkInRe matches CHECK ("col" IN ('a', 'b')) clauses in a CREATE TABLE statement.
var checkInRe = regexp.MustCompile(`(?i)CHECK\s*\(\s*["` + "`" + `\[]?([A-Za-z_][A-Za-z0-9_]*)["` + "`" + `\]]?\s+IN\s*\(([^)]*)\)\s*\)`)

// parseCheckEnums returns the enum values of every CHECK-IN clause in sql,
// keyed by column name.
func parseCheckEnums(sql string) map[string][]string {
	enums := make(map[string][]string)
	for _, m := range checkInRe.FindAllStringSubmatch(sql, -1) {
		if values := parseQuotedLiterals(m[2]); len(values) > 0 {
			enums[m[1]] = values
		}
	}
	return enums
}
