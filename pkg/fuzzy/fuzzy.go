// Package fuzzy implements edit-distance similarity and spelling correction
// over a fixed vocabulary of display strings.
package fuzzy

import (
	"github.com/mariohealth/marioserve/internal/utils"
)

const (
	// DefaultThreshold is the minimum similarity for a correction.
	DefaultThreshold = 0.6
	// DefaultMinInputLen gates correction; shorter inputs are too noisy.
	DefaultMinInputLen = 3
)

// Distance returns the Levenshtein distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// two rows are enough
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity is 1 - Distance(a, b)/max(len(a), len(b)) over runes.
// Two empty strings are identical and score 1.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(maxLen)
}

// FindClosestMatch returns the vocabulary entry most similar to input when its
// similarity reaches threshold. Comparison is on normalized text; the entry is
// returned as given. Among equal scores the first entry wins.
func FindClosestMatch(input string, vocabulary []string, threshold float64) (string, bool) {
	q := utils.Normalize(input)
	if q == "" || len(vocabulary) == 0 {
		return "", false
	}
	normalized := make([]string, len(vocabulary))
	for i, entry := range vocabulary {
		normalized[i] = utils.Normalize(entry)
	}
	i, _ := closest(q, normalized, threshold)
	if i < 0 {
		return "", false
	}
	return vocabulary[i], true
}

// closest returns the index of the first best entry of normalized scoring at
// least threshold against q, or -1. exact is set when some entry equals q.
func closest(q string, normalized []string, threshold float64) (best int, exact bool) {
	best, bestScore := -1, -1.0
	for i, n := range normalized {
		if n == q {
			return i, true
		}
		score := Similarity(q, n)
		// strict: keeps the earliest entry on ties
		if score >= threshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, false
}

// Matcher holds a vocabulary for repeated spelling suggestions.
// It is immutable and safe for concurrent use.
type Matcher struct {
	words       []string
	normalized  []string
	threshold   float64
	minInputLen int
}

// Option configures a Matcher
type Option func(*Matcher)

// WithThreshold sets the minimum similarity for a correction
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

// WithMinInputLen sets the input length below which no correction is tried
func WithMinInputLen(n int) Option {
	return func(m *Matcher) {
		if n >= 0 {
			m.minInputLen = n
		}
	}
}

// NewMatcher creates a matcher over words. Duplicate entries (after
// normalization) are kept once, in first-seen order.
func NewMatcher(words []string, opts ...Option) *Matcher {
	m := &Matcher{
		threshold:   DefaultThreshold,
		minInputLen: DefaultMinInputLen,
	}
	for _, opt := range opts {
		opt(m)
	}

	filter := utils.NewSuggestionFilter(len(words))
	for _, w := range words {
		n := utils.Normalize(w)
		if n == "" || !filter.ShouldInclude(n) {
			continue
		}
		m.words = append(m.words, w)
		m.normalized = append(m.normalized, n)
	}
	return m
}

// SuggestCorrection returns the closest vocabulary entry for input and
// whether it differs from what was typed. Inputs shorter than the minimum
// length, exact matches and inputs with no close entry come back unchanged.
func (m *Matcher) SuggestCorrection(input string) (string, bool) {
	q := utils.Normalize(input)
	if len([]rune(q)) < m.minInputLen {
		return input, false
	}

	best, exact := closest(q, m.normalized, m.threshold)
	if best < 0 || exact {
		return input, false
	}
	return m.words[best], true
}

// Len returns the number of distinct vocabulary entries
func (m *Matcher) Len() int {
	return len(m.words)
}
