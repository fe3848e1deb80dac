package dictionary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Vocabulary is an immutable, ordered set of terms. It is built once per
// data refresh and shared between readers without locking.
type Vocabulary struct {
	terms      []Term
	byCategory map[Category][]int
	// assigned marks terms whose ID was filled in here
	assigned []bool
}

// NewVocabulary copies terms into a new vocabulary. Terms with blank text or
// an unknown category are skipped; missing IDs are filled as "<category>-<n>".
// Input order is kept and is the tie-break order everywhere downstream.
func NewVocabulary(terms []Term) *Vocabulary {
	v := &Vocabulary{
		terms:      make([]Term, 0, len(terms)),
		byCategory: make(map[Category][]int, len(Categories)),
		assigned:   make([]bool, 0, len(terms)),
	}

	skipped := 0
	for _, t := range terms {
		if strings.TrimSpace(t.Text) == "" || !t.Category.Valid() {
			skipped++
			continue
		}
		t = t.Clone()
		assigned := t.ID == ""
		if assigned {
			t.ID = fmt.Sprintf("%s-%d", t.Category, len(v.byCategory[t.Category]))
		}
		v.assigned = append(v.assigned, assigned)
		v.byCategory[t.Category] = append(v.byCategory[t.Category], len(v.terms))
		v.terms = append(v.terms, t)
	}

	if skipped > 0 {
		log.Warnf("Skipped %d vocabulary terms with blank text or unknown category", skipped)
	}
	return v
}

// Len returns the number of terms
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// At returns the i-th term. The returned pointer must not be modified.
func (v *Vocabulary) At(i int) *Term {
	return &v.terms[i]
}

// AssignedID reports whether the i-th term arrived without an ID and got a
// positional one
func (v *Vocabulary) AssignedID(i int) bool {
	return v.assigned[i]
}

// Terms returns a copy of every term in insertion order
func (v *Vocabulary) Terms() []Term {
	if v == nil {
		return nil
	}
	out := make([]Term, len(v.terms))
	for i := range v.terms {
		out[i] = v.terms[i].Clone()
	}
	return out
}

// Each calls fn for every term of category c in insertion order until fn
// returns false. The term must not be modified.
func (v *Vocabulary) Each(c Category, fn func(*Term) bool) {
	if v == nil {
		return
	}
	for _, idx := range v.byCategory[c] {
		if !fn(&v.terms[idx]) {
			return
		}
	}
}

// Category returns copies of the terms of category c in insertion order
func (v *Vocabulary) Category(c Category) []Term {
	if v == nil {
		return nil
	}
	out := make([]Term, 0, len(v.byCategory[c]))
	for _, idx := range v.byCategory[c] {
		out = append(out, v.terms[idx].Clone())
	}
	return out
}

// Texts returns the display text of every term, in order
func (v *Vocabulary) Texts() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.terms))
	for i := range v.terms {
		out[i] = v.terms[i].Text
	}
	return out
}

var categoryStatKeys = map[Category]string{
	CategoryProvider:   "providers",
	CategorySpecialty:  "specialties",
	CategoryProcedure:  "procedures",
	CategoryMedication: "medications",
}

// Stats returns term counts per category plus the total
func (v *Vocabulary) Stats() map[string]int {
	stats := map[string]int{"totalTerms": v.Len()}
	for c, key := range categoryStatKeys {
		n := 0
		if v != nil {
			n = len(v.byCategory[c])
		}
		stats[key] = n
	}
	return stats
}
