package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// Normalize canonicalizes free text for matching: compatibility
// decomposition, combining marks dropped, case folded, trimmed and internal
// whitespace collapsed to single spaces.
//
// Casers and transform chains carry state, so both are built per call.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizedLen is the rune length of Normalize(s).
func NormalizedLen(s string) int {
	return utf8.RuneCountInString(Normalize(s))
}

// ExtractPrice strips every non-digit character and parses what is left.
// "$1,250" yields 1250. Anything unparseable yields 0.
func ExtractPrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return parseFinite(b.String())
}

// ExtractPercent returns the number in the first "NN%" pattern of s, or 0.
func ExtractPercent(s string) float64 {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	return parseFinite(m[1])
}

// ExtractFloat keeps the digits and the first decimal point of s and parses
// the result, so "2.3 mi" yields 2.3 and "$45.00" yields 45. Unparseable
// input yields 0.
func ExtractFloat(s string) float64 {
	var b strings.Builder
	seenDot := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}
	return parseFinite(b.String())
}

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseFinite(s string) float64 {
	if s == "" || s == "." {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return Finite(v)
}
