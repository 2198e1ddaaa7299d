package alerr

import (
	"fmt"
	"strings"
)

// foldIdent lowercases s and drops underscores, so a logical key and its SQL
// name (createdAt, created_at) compare equal.
func foldIdent(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// editDistance is the Levenshtein distance over runes, kept in a single row.
func editDistance(a, b []rune) int {
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			above := row[j]
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min(above+1, row[j-1]+1, diag+cost)
			diag = above
		}
	}
	return row[len(b)]
}

// maxEdits bounds how far a suggestion may be from the input: one edit per
// three characters, never less than 2 nor more than 3.
func maxEdits(folded []rune) int {
	return min(3, max(2, len(folded)/3))
}

// FindClosestMatch returns the option nearest to input, comparing
// identifiers without case or underscores. Ties keep the earliest option.
func FindClosestMatch(input string, options []string) (string, bool) {
	in := []rune(foldIdent(input))
	limit := maxEdits(in)

	best, bestDist := "", limit+1
	for _, opt := range options {
		if d := editDistance(in, []rune(foldIdent(opt))); d < bestDist {
			best, bestDist = opt, d
		}
	}
	return best, bestDist <= limit
}

// SuggestSimilar returns `did you mean "X"?` for the closest option, or "".
func SuggestSimilar(input string, options []string) string {
	if match, ok := FindClosestMatch(input, options); ok {
		return fmt.Sprintf("did you mean %q?", match)
	}
	return ""
}
