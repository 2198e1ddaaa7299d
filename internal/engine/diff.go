package engine

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/dialect"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// SchemaDiff is the structural difference between a declared and a runtime
// schema. Table lists are in dependency order.
type SchemaDiff struct {
	AddedTables    []string
	RemovedTables  []string
	ModifiedTables []TableDiff
}

// TableDiff lists the column changes of a table present on both sides.
// Declared columns are reported by logical key, runtime-only columns by the
// camelCase form of their SQL name.
type TableDiff struct {
	TableName       string
	AddedColumns    []string
	RemovedColumns  []string
	ModifiedColumns []string

	Added    []ColumnChange
	Removed  []ColumnChange
	Modified []ColumnChange
}

// ColumnChange describes one column-level change. From is the runtime column
// (nil when added), To the declared column (nil when removed).
type ColumnChange struct {
	Key     string
	From    *ast.ColumnDef
	To      *ast.ColumnDef
	Changes ast.ColumnChanges
}

// Name returns the SQL name of the changed column.
func (c ColumnChange) Name() string {
	if c.To != nil {
		return c.To.Name
	}
	return c.From.Name
}

// IsEmpty reports whether the schemas are identical.
func (d *SchemaDiff) IsEmpty() bool {
	return d == nil || (len(d.AddedTables) == 0 && len(d.RemovedTables) == 0 && len(d.ModifiedTables) == 0)
}

// Destructive reports whether applying the diff would remove a table or column.
func (d *SchemaDiff) Destructive() bool {
	if d == nil {
		return false
	}
	if len(d.RemovedTables) > 0 {
		return true
	}
	for _, t := range d.ModifiedTables {
		if len(t.RemovedColumns) > 0 {
			return true
		}
	}
	return false
}

// Table returns the diff of a modified table, or nil.
func (d *SchemaDiff) Table(name string) *TableDiff {
	for i := range d.ModifiedTables {
		if d.ModifiedTables[i].TableName == name {
			return &d.ModifiedTables[i]
		}
	}
	return nil
}

// String renders a short human-readable summary.
func (d *SchemaDiff) String() string {
	if d.IsEmpty() {
		return "no changes"
	}
	var parts []string
	if len(d.AddedTables) > 0 {
		parts = append(parts, "added tables: "+strings.Join(d.AddedTables, ", "))
	}
	if len(d.RemovedTables) > 0 {
		parts = append(parts, "removed tables: "+strings.Join(d.RemovedTables, ", "))
	}
	for _, t := range d.ModifiedTables {
		parts = append(parts, fmt.Sprintf("%s: +%v -%v ~%v", t.TableName, t.AddedColumns, t.RemovedColumns, t.ModifiedColumns))
	}
	return strings.Join(parts, "; ")
}

// DiffOptions tunes the comparison.
type DiffOptions struct {
	// Dialect enables dialect-specific normalisation of runtime defaults.
	Dialect string
	// Ignore lists runtime tables that are not managed by the declared schema
	// and must never be reported as removed.
	Ignore []string
}

// Diff compares the declared schema against the runtime schema.
//
// Algorithm:
//  1. Resolve reference thunks on the declared side
//  2. Tables only in declared are added, tables only in runtime are removed
//  3. Tables in both are compared column by column, matched by SQL name
//  4. Sort added and modified tables by the declared FK graph, removed tables
//     in reverse order of the runtime graph
//
// There is no rename detection: a renamed column is one added and one removed column.
func Diff(declared, runtime *ast.Schema, opts DiffOptions) (*SchemaDiff, error) {
	if declared == nil {
		declared = ast.NewSchema()
	}
	if runtime == nil {
		runtime = ast.NewSchema()
	}
	if err := ast.ResolveReferences(declared); err != nil {
		return nil, err
	}

	order, err := DependencyOrder(declared)
	if err != nil {
		return nil, err
	}

	diff := &SchemaDiff{}
	for _, name := range order {
		want := declared.Table(name)
		have := runtime.Table(name)
		if have == nil {
			diff.AddedTables = append(diff.AddedTables, name)
			continue
		}
		if td := diffTable(want, have, opts); td != nil {
			diff.ModifiedTables = append(diff.ModifiedTables, *td)
		}
	}

	var removed []string
	for _, name := range runtime.Names() {
		if !declared.Has(name) && !slices.Contains(opts.Ignore, name) {
			removed = append(removed, name)
		}
	}
	diff.RemovedTables = dropOrder(runtime, removed)

	return diff, nil
}

// dropOrder orders tables so dependents are dropped before the tables they
// reference. An unorderable runtime graph falls back to reverse name order.
func dropOrder(runtime *ast.Schema, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	order, err := DependencyOrder(runtime, names...)
	if err != nil {
		order = slices.Clone(names)
		slices.Sort(order)
	}
	slices.Reverse(order)
	return order
}

// diffTable compares one table; nil means no changes.
func diffTable(want, have *ast.TableDef, opts DiffOptions) *TableDiff {
	td := &TableDiff{TableName: want.Name}

	haveByName := make(map[string]*ast.ColumnDef, len(have.Columns))
	for _, c := range have.Columns {
		haveByName[c.Name] = c
	}

	for _, col := range want.Columns {
		runtimeCol, ok := haveByName[col.Name]
		if !ok {
			td.AddedColumns = append(td.AddedColumns, col.Key)
			td.Added = append(td.Added, ColumnChange{Key: col.Key, To: col})
			continue
		}
		if changes := compareColumns(col, runtimeCol, opts.Dialect); changes.Any() {
			td.ModifiedColumns = append(td.ModifiedColumns, col.Key)
			td.Modified = append(td.Modified, ColumnChange{Key: col.Key, From: runtimeCol, To: col, Changes: changes})
		}
	}

	for _, col := range have.Columns {
		if declaredByName(want, col.Name) {
			continue
		}
		key := strutil.ToCamelCase(col.Name)
		td.RemovedColumns = append(td.RemovedColumns, key)
		td.Removed = append(td.Removed, ColumnChange{Key: key, From: col})
	}

	if len(td.Added) == 0 && len(td.Removed) == 0 && len(td.Modified) == 0 {
		return nil
	}
	return td
}

// declaredByName reports whether a declared column has the given SQL name.
// TableDef.Col is not used here because it also matches logical keys.
func declaredByName(t *ast.TableDef, name string) bool {
	return slices.ContainsFunc(t.Columns, func(c *ast.ColumnDef) bool { return c.Name == name })
}

// compareColumns reports which aspects of a declared column differ from its
// runtime counterpart.
func compareColumns(want, have *ast.ColumnDef, dialectName string) ast.ColumnChanges {
	var c ast.ColumnChanges

	c.Type = !want.Type.Equal(have.Type)
	c.Nullable = want.IsNullable() != have.IsNullable()
	c.Default = CanonicalDefault(want.Default, want.Type.Kind, dialectName) !=
		CanonicalDefault(have.Default, want.Type.Kind, dialectName)
	c.Unique = (want.Unique && !want.PrimaryKey) != (have.Unique && !have.PrimaryKey)
	c.Reference = referenceKey(want.Ref) != referenceKey(have.Ref)

	return c
}

// referenceKey renders a reference target and its actions for comparison.
func referenceKey(r *ast.Reference) string {
	if r == nil || !r.Resolved() {
		return ""
	}
	return fmt.Sprintf("%s.%s|%s|%s", r.Table, r.Column, fkAction(r.OnDelete), fkAction(r.OnUpdate))
}

// fkAction normalizes an FK action; NO ACTION is the default and compares as empty.
func fkAction(action string) string {
	a, err := ast.NormalizeFKAction(action)
	if err != nil || a == "NO ACTION" {
		return ""
	}
	return a
}

// -----------------------------------------------------------------------------
// Default canonicalization
// -----------------------------------------------------------------------------

var (
	// castRe matches Postgres casts such as ::character varying or ::numeric(10,2).
	castRe = regexp.MustCompile(`(?i)::[a-z_][a-z0-9_ ]*(\(\d+(\s*,\s*\d+)?\))?(\[\])?`)
	// charsetIntroducerRe matches MySQL charset introducers such as _utf8mb4'x'.
	charsetIntroducerRe = regexp.MustCompile(`(?i)(^|\()_(?:utf8[a-z0-9]*|latin1|binary)(\\?')`)
)

// CanonicalDefault renders a default in a form that compares equal across the
// spellings a database may report for it. The empty string means no default.
//
//	'member'::character varying  -> 'member'
//	CURRENT_TIMESTAMP, now()     -> now()
//	1 (boolean column)           -> true
//	1.50                         -> 1.5
func CanonicalDefault(d *ast.Default, kind ast.Kind, dialectName string) string {
	if d == nil {
		return ""
	}

	var raw string
	switch d.Kind {
	case ast.DefaultNow:
		return "now()"
	case ast.DefaultExpr:
		raw = d.Expr
	default:
		switch v := d.Value.(type) {
		case nil:
			return ""
		case string:
			raw = strutil.QuoteLiteral(v)
		case bool:
			raw = strconv.FormatBool(v)
		default:
			raw = fmt.Sprint(v)
		}
	}

	return canonicalExpr(raw, kind, dialectName)
}

func canonicalExpr(s string, kind ast.Kind, dialectName string) string {
	s = strings.TrimSpace(s)
	if dialect.Canonical(dialectName) == dialect.NameMySQL {
		s = charsetIntroducerRe.ReplaceAllString(s, "$1$2")
		s = strings.ReplaceAll(s, `\'`, "'")
	}
	s = stripParens(s)
	s = castRe.ReplaceAllString(s, "")
	s = stripParens(s)

	lower := strings.ToLower(s)
	switch lower {
	case "", "null":
		return ""
	case "now()", "current_timestamp", "current_timestamp()", "localtimestamp", "transaction_timestamp()":
		return "now()"
	}

	if kind == ast.KindBoolean {
		switch lower {
		case "1", "true", "'1'", "'t'", "'true'", "b'1'":
			return "true"
		case "0", "false", "'0'", "'f'", "'false'", "b'0'":
			return "false"
		}
	}

	if kind == ast.KindInteger || kind == ast.KindNumeric {
		lower = strings.Trim(lower, "'")
	}
	if f, err := strconv.ParseFloat(lower, 64); err == nil && !strings.HasPrefix(lower, "'") {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	// string literals keep their case, expressions do not
	if strings.HasPrefix(s, "'") {
		return s
	}
	return lower
}

// stripParens removes parentheses that wrap the whole expression.
func stripParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && wrapsWhole(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// wrapsWhole reports whether the opening paren at s[0] closes at the end of s.
func wrapsWhole(s string) bool {
	depth := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '\'':
			inQuote = !inQuote
		case inQuote:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
