package fortune

import (
	"strings"
	"unicode/utf8"
)

// Normalize trims, lowercases and collapses internal whitespace. Used for
// user ids and search terms, not for fortune text.
func Normalize(s string) string {
	return strings.ToLower(normalizeLine(s))
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
