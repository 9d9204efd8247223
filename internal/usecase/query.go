package usecase

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// defaultMaxQueryLength bounds queries in runes after normalization
const defaultMaxQueryLength = 200

// NormalizeQuery case-folds the query and collapses runs of whitespace into
// single spaces. The result is what gets sent as the marketplace keyword.
func NormalizeQuery(raw string) string {
	// Casers are stateful, so one is built per call
	folded := cases.Fold().String(raw)
	return strings.Join(strings.Fields(folded), " ")
}

// validateQuery reports whether a normalized query can be sent
func validateQuery(query string, maxLength int) bool {
	if query == "" {
		return false
	}
	return utf8.RuneCountInString(query) <= maxLength
}
