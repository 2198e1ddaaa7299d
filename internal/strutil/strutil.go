// Package strutil provides the case conversion and SQL naming helpers shared by
// the builders, dialects and code generator.
package strutil

import (
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------------
// Case Conversion
// -----------------------------------------------------------------------------

// ToSnakeCase converts a string to snake_case.
// Examples: createdAt -> created_at, UserID -> user_id, HTTPServer -> http_server
func ToSnakeCase(s string) string {
	if s == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(s) + 4)

	for i, r := range s {
		switch {
		case unicode.IsUpper(r):
			// "HTTPServer" -> "http_server": break before the last capital of a run.
			if i > 0 {
				prev := rune(s[i-1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					result.WriteByte('_')
				} else if i+1 < len(s) && unicode.IsLower(rune(s[i+1])) && prev != '_' {
					result.WriteByte('_')
				}
			}
			result.WriteRune(unicode.ToLower(r))
		case r == '-' || r == ' ':
			result.WriteByte('_')
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ToPascalCase converts a snake_case or kebab-case string to PascalCase.
// Examples: user_profiles -> UserProfiles, users -> Users
func ToPascalCase(s string) string {
	if s == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(s))

	capitalizeNext := true
	for _, r := range s {
		if r == '_' || r == '-' || r == ' ' {
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			result.WriteRune(unicode.ToUpper(r))
			capitalizeNext = false
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ToCamelCase converts a snake_case string to camelCase.
// Examples: created_at -> createdAt, id -> id
func ToCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if pascal == "" {
		return ""
	}

	runes := []rune(pascal)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// -----------------------------------------------------------------------------
// SQL Naming
// -----------------------------------------------------------------------------

// ConstraintName builds a deterministic constraint name.
// Example: ConstraintName("uniq", "users", "email") -> "uniq_users_email"
func ConstraintName(prefix, table string, parts ...string) string {
	all := append([]string{prefix, table}, parts...)
	return strings.Join(all, "_")
}

// QuoteIdent wraps an identifier in the given quote character, doubling any
// embedded occurrences.
func QuoteIdent(name string, quote byte) string {
	q := string(quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// QuoteLiteral renders a SQL string literal with single quotes escaped.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
