package normalize

import (
	"strings"
	"unicode/utf8"
)

// Text collapses internal whitespace runs to single spaces and trims the ends.
func Text(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Trimmed trims surrounding whitespace only.
func Trimmed(value string) string {
	return strings.TrimSpace(value)
}

// Length counts runes, which is how user-facing length limits are expressed.
func Length(value string) int {
	return utf8.RuneCountInString(value)
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
