package codegen

import (
	"slices"
	"strings"

	"github.com/hlop3z/xpdb/internal/dialect"
)

// Selection is a set of dialects chosen on the command line.
type Selection struct {
	Dialects []string // canonical dialect names, in canonical order
	Unknown  []string // names that matched no dialect
}

// All selects every supported dialect.
func All() Selection {
	return Selection{Dialects: dialect.Names()}
}

// None selects nothing.
func None() Selection {
	return Selection{}
}

// ParseSelection parses "all", "none" or a comma-separated list such as
// "postgres,sqlite". Aliases (pg, postgresql, sqlite3, mariadb) are accepted.
// Unknown names are kept in Unknown so the caller can warn about them.
func ParseSelection(s string) Selection {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "all":
		return All()
	case "none":
		return None()
	}

	var sel Selection
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, ok := dialect.Get(part)
		if !ok {
			sel.Unknown = append(sel.Unknown, part)
			continue
		}
		if !slices.Contains(sel.Dialects, d.Name()) {
			sel.Dialects = append(sel.Dialects, d.Name())
		}
	}

	order := dialect.Names()
	slices.SortFunc(sel.Dialects, func(a, b string) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})
	return sel
}

// IsEmpty reports whether no dialect is selected.
func (s Selection) IsEmpty() bool {
	return len(s.Dialects) == 0
}

// String renders the selection back into its flag form. Unknown names are
// kept so the result parses to the same Selection.
func (s Selection) String() string {
	switch {
	case s.IsEmpty() && len(s.Unknown) == 0:
		return "none"
	case slices.Equal(s.Dialects, dialect.Names()) && len(s.Unknown) == 0:
		return "all"
	default:
		return strings.Join(append(slices.Clone(s.Dialects), s.Unknown...), ",")
	}
}
