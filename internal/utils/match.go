package utils

import (
	"slices"
	"unicode"
)

// MatchRanges returns the [start, end) rune ranges of text where query
// occurs, comparing both the way Normalize does: accents dropped, case
// folded and whitespace runs collapsed. Ranges do not overlap and are in
// text order. A query that normalizes to nothing has no ranges.
func MatchRanges(text, query string) [][2]int {
	q := []rune(Normalize(query))
	if len(q) == 0 {
		return nil
	}

	// folded[k] came from rune origin[k] of text
	var folded []rune
	var origin []int
	pos := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			if n := len(folded); n > 0 && folded[n-1] != ' ' {
				folded = append(folded, ' ')
				origin = append(origin, pos)
			}
		} else {
			for _, f := range Normalize(string(r)) {
				folded = append(folded, f)
				origin = append(origin, pos)
			}
		}
		pos++
	}

	var ranges [][2]int
	for k := 0; k+len(q) <= len(folded); {
		if !slices.Equal(folded[k:k+len(q)], q) {
			k++
			continue
		}
		ranges = append(ranges, [2]int{origin[k], origin[k+len(q)-1] + 1})
		k += len(q)
	}
	return ranges
}
