package utils

import (
	"strings"
	"unicode"
)

// IsSeparator checks if a rune separates words in a display name
func IsSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.' || r == '/' || r == ',' ||
		r == '(' || r == ')' || r == '–' || r == '—'
}

// Words splits already-normalized text into words, dropping punctuation-only tokens.
func Words(normalized string) []string {
	return strings.FieldsFunc(normalized, IsSeparator)
}

// FirstWord returns the first space-delimited word of normalized text.
// "mri scan – brain" yields "mri", "lipitor 20 mg" yields "lipitor".
func FirstWord(normalized string) string {
	if i := strings.IndexByte(normalized, ' '); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// ContainsEither reports whether a contains b or b contains a.
// Both are expected to be normalized; an empty side never matches.
func ContainsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// IsRepetitive checks for a single character repeated 3+ times ("aaa").
func IsRepetitive(s string) bool {
	if len(s) <= 2 {
		return false
	}
	firstChar := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != firstChar {
			return false
		}
	}
	return true
}

// IsValidInput checks if a typed query is worth a lookup.
// Pure digit strings and "aaaa"-style key mashing are rejected.
func IsValidInput(s string) bool {
	n := Normalize(s)
	if n == "" {
		return false
	}
	if IsOnlyNumbers(strings.ReplaceAll(n, " ", "")) {
		return false
	}
	return !IsRepetitive(n)
}
