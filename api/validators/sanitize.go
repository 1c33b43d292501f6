package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString prepares free-text search input. Control characters are
// dropped, runs of whitespace collapse to one space, and the result is cut
// to maxLen runes so accented names never split mid-character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == utf8.RuneError:
			return -1
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, input)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:maxLen]))
	}
	return cleaned
}
