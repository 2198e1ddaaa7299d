// Package ast defines the canonical, dialect-independent schema model shared by
// declared schemas (built in code) and runtime schemas (introspected from a live
// database). Both sides use the same shapes so they can be diffed directly.
package ast

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the logical type tag of a column.
type Kind int

const (
	// KindUnknown marks a native type the introspector could not map.
	KindUnknown Kind = iota
	KindText
	KindVarchar
	KindInteger
	KindNumeric
	KindUUID
	KindTimestamp
	KindBoolean
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVarchar:
		return "varchar"
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "numeric"
	case KindUUID:
		return "uuid"
	case KindTimestamp:
		return "timestamp"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Default sizes applied when a builder omits them.
const (
	DefaultVarcharLength    = 255
	DefaultNumericPrecision = 10
)

// Type is a logical column type with its arguments.
type Type struct {
	Kind      Kind
	Length    int      // varchar
	Precision int      // numeric
	Scale     int      // numeric
	Enum      []string // varchar restricted to a closed set of literals
	Raw       string   // native type name, kept for KindUnknown
}

// IsEnum reports whether the type is a varchar with a closed set of values.
func (t Type) IsEnum() bool {
	return t.Kind == KindVarchar && len(t.Enum) > 0
}

// Tag renders the logical type tag, e.g. "varchar(255)", "numeric(10,2)" or "enum(a,b)".
func (t Type) Tag() string {
	switch t.Kind {
	case KindVarchar:
		if t.IsEnum() {
			return "enum(" + strings.Join(t.Enum, ",") + ")"
		}
		return fmt.Sprintf("varchar(%d)", t.Length)
	case KindNumeric:
		return fmt.Sprintf("numeric(%d,%d)", t.Precision, t.Scale)
	case KindUnknown:
		return "unknown(" + t.Raw + ")"
	default:
		return t.Kind.String()
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return t.Tag()
}

// Equal reports whether two types are structurally identical.
// Enum variant sets are compared without regard to order.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindVarchar:
		if t.IsEnum() && o.IsEnum() && (t.Length == 0 || o.Length == 0) {
			// native ENUM types have no length
			return sameSet(t.Enum, o.Enum)
		}
		return t.Length == o.Length && sameSet(t.Enum, o.Enum)
	case KindNumeric:
		return t.Precision == o.Precision && t.Scale == o.Scale
	case KindUnknown:
		return strings.EqualFold(strings.TrimSpace(t.Raw), strings.TrimSpace(o.Raw))
	default:
		return true
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

// -----------------------------------------------------------------------------
// Default values
// -----------------------------------------------------------------------------

// DefaultKind classifies a column default.
type DefaultKind int

const (
	// DefaultLiteral is a Go value rendered as a SQL literal.
	DefaultLiteral DefaultKind = iota + 1
	// DefaultExpr is a raw SQL expression passed through unchanged.
	DefaultExpr
	// DefaultNow is the current timestamp, rendered per dialect.
	DefaultNow
)

// Default is a column default value.
type Default struct {
	Kind  DefaultKind
	Value any    // DefaultLiteral
	Expr  string // DefaultExpr
}

// Literal returns a literal default.
func Literal(v any) *Default {
	return &Default{Kind: DefaultLiteral, Value: v}
}

// Expr returns a raw SQL expression default.
func Expr(expr string) *Default {
	return &Default{Kind: DefaultExpr, Expr: expr}
}

// Now returns the current-timestamp default.
func Now() *Default {
	return &Default{Kind: DefaultNow}
}

// String renders the default for diagnostics, not for SQL.
func (d *Default) String() string {
	if d == nil {
		return "<none>"
	}
	switch d.Kind {
	case DefaultNow:
		return "now()"
	case DefaultExpr:
		return d.Expr
	default:
		return fmt.Sprintf("%v", d.Value)
	}
}
