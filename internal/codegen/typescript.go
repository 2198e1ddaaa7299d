package codegen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hlop3z/xpdb/internal/ast"
	"github.com/hlop3z/xpdb/internal/strutil"
)

// tsTypes maps logical kinds to TypeScript types. Numeric values travel as
// strings so no precision is lost.
var tsTypes = map[ast.Kind]string{
	ast.KindText:      "string",
	ast.KindVarchar:   "string",
	ast.KindInteger:   "number",
	ast.KindNumeric:   "string",
	ast.KindUUID:      "string",
	ast.KindTimestamp: "string",
	ast.KindBoolean:   "boolean",
}

var tsIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// tsReservedKeywords cannot appear unquoted as property names in some
// toolchains, so they are emitted quoted.
var tsReservedKeywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true,
}

// TypeScript renders a record interface and an insert interface for every
// table, in schema order.
func TypeScript(s *ast.Schema) string {
	var sb strings.Builder

	sb.WriteString("// Code generated by xpdb-gen. DO NOT EDIT.\n")

	for _, table := range s.Tables() {
		sb.WriteString("\n")
		writeInterfaces(&sb, table)
	}

	return sb.String()
}

func writeInterfaces(sb *strings.Builder, table *ast.TableDef) {
	name := strutil.ToPascalCase(table.Name)

	fmt.Fprintf(sb, "export interface %s {\n", name)
	for _, col := range table.Columns {
		fmt.Fprintf(sb, "  %s: %s;\n", propertyName(col.Key), columnType(col))
	}
	sb.WriteString("}\n\n")

	fmt.Fprintf(sb, "export interface New%s {\n", name)
	for _, col := range table.Columns {
		optional := ""
		if insertOptional(col) {
			optional = "?"
		}
		fmt.Fprintf(sb, "  %s%s: %s;\n", propertyName(col.Key), optional, columnType(col))
	}
	sb.WriteString("}\n")
}

// insertOptional reports whether an insert may omit the column: the database
// (or the client, for uuid primary keys) supplies a value.
func insertOptional(col *ast.ColumnDef) bool {
	if col.IsNullable() || col.Default != nil {
		return true
	}
	return col.PrimaryKey && col.Type.Kind == ast.KindUUID
}

// columnType converts a column to its TypeScript type. Enums become a union
// of string literals and nullable columns add "| null".
func columnType(col *ast.ColumnDef) string {
	var t string
	if col.Type.IsEnum() {
		quoted := make([]string, len(col.Type.Enum))
		for i, v := range col.Type.Enum {
			quoted[i] = tsString(v)
		}
		t = strings.Join(quoted, " | ")
	} else if mapped, ok := tsTypes[col.Type.Kind]; ok {
		t = mapped
	} else {
		t = "unknown"
	}

	if col.IsNullable() {
		return t + " | null"
	}
	return t
}

func propertyName(key string) string {
	if tsIdentifier.MatchString(key) && !tsReservedKeywords[key] {
		return key
	}
	return tsString(key)
}

func tsString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
