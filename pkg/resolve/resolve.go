// Package resolve classifies a submitted query against the vocabulary.
//
// Categories are tried in a fixed order and the first match wins:
// provider names, then specialties (resolved to the providers practicing
// them), then procedures, then medications.
package resolve

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/dictionary"
)

// Kind tags the variant of a Resolved value
type Kind string

const (
	KindEntity     Kind = "entity"
	KindCollection Kind = "collection"
	KindNone       Kind = "none"
)

// minFirstWordLen keeps one-letter first words ("a", "x") from matching
// every query containing that letter.
const minFirstWordLen = 2

// Resolved is the single outcome of resolving a query.
//
// KindEntity sets Entity. KindCollection sets EntityType, Items and the
// matched Specialty. KindNone sets neither. Category names the precedence
// step that matched.
type Resolved struct {
	Kind       Kind                `json:"kind" msgpack:"kind"`
	Query      string              `json:"query" msgpack:"query"`
	Category   dictionary.Category `json:"category,omitempty" msgpack:"category,omitempty"`
	Entity     *dictionary.Term    `json:"entity,omitempty" msgpack:"entity,omitempty"`
	EntityType dictionary.Category `json:"entity_type,omitempty" msgpack:"entity_type,omitempty"`
	Specialty  string              `json:"specialty,omitempty" msgpack:"specialty,omitempty"`
	Items      []dictionary.Term   `json:"items,omitempty" msgpack:"items,omitempty"`
}

type nameEntry struct {
	term      *dictionary.Term
	name      string
	firstWord string
}

type specialtyEntry struct {
	text string
	name string
}

// Resolver holds normalized lookup tables for one vocabulary.
// It is immutable and safe for concurrent use.
type Resolver struct {
	providers   []nameEntry
	specialties []specialtyEntry
	procedures  []nameEntry
	medications []nameEntry
	// normalized specialty -> providers practicing it, in vocabulary order
	bySpecialty map[string][]*dictionary.Term
}

// NewResolver builds the lookup tables. Specialties come from specialty
// terms first, followed by any provider specialty the vocabulary does not
// list on its own.
func NewResolver(vocab *dictionary.Vocabulary) *Resolver {
	r := &Resolver{bySpecialty: make(map[string][]*dictionary.Term)}

	seen := utils.NewSuggestionFilter(0)
	vocab.Each(dictionary.CategorySpecialty, func(t *dictionary.Term) bool {
		n := utils.Normalize(t.Text)
		if seen.ShouldInclude(n) {
			r.specialties = append(r.specialties, specialtyEntry{text: t.Text, name: n})
		}
		return true
	})

	vocab.Each(dictionary.CategoryProvider, func(t *dictionary.Term) bool {
		r.providers = append(r.providers, newNameEntry(t))
		if s := utils.Normalize(t.Specialty()); s != "" {
			r.bySpecialty[s] = append(r.bySpecialty[s], t)
			if seen.ShouldInclude(s) {
				r.specialties = append(r.specialties, specialtyEntry{text: t.Specialty(), name: s})
			}
		}
		return true
	})

	vocab.Each(dictionary.CategoryProcedure, func(t *dictionary.Term) bool {
		r.procedures = append(r.procedures, newNameEntry(t))
		return true
	})
	vocab.Each(dictionary.CategoryMedication, func(t *dictionary.Term) bool {
		r.medications = append(r.medications, newNameEntry(t))
		return true
	})

	log.Debugf("Built resolver: %d providers, %d specialties, %d procedures, %d medications",
		len(r.providers), len(r.specialties), len(r.procedures), len(r.medications))
	return r
}

func newNameEntry(t *dictionary.Term) nameEntry {
	n := utils.Normalize(t.Text)
	return nameEntry{term: t, name: n, firstWord: utils.FirstWord(n)}
}

// Resolve returns exactly one resolution for any input. Blank input
// resolves to KindNone.
func (r *Resolver) Resolve(query string) Resolved {
	none := Resolved{Kind: KindNone, Query: query}
	q := utils.Normalize(query)
	if r == nil || q == "" {
		return none
	}

	for _, p := range r.providers {
		if utils.ContainsEither(p.name, q) {
			return entity(query, dictionary.CategoryProvider, p.term)
		}
	}

	for _, s := range r.specialties {
		if utils.ContainsEither(s.name, q) {
			return r.collection(query, s)
		}
	}

	if p, ok := matchNameOrFirstWord(r.procedures, q); ok {
		return entity(query, dictionary.CategoryProcedure, p.term)
	}
	if m, ok := matchNameOrFirstWord(r.medications, q); ok {
		return entity(query, dictionary.CategoryMedication, m.term)
	}
	return none
}

// matchNameOrFirstWord finds the first entry whose name contains q, or whose
// first word appears in q ("MRI" for "MRI Scan – Brain", "lipitor" for
// "Lipitor 20 mg").
func matchNameOrFirstWord(entries []nameEntry, q string) (nameEntry, bool) {
	for _, e := range entries {
		if strings.Contains(e.name, q) {
			return e, true
		}
		if utf8.RuneCountInString(e.firstWord) >= minFirstWordLen && strings.Contains(q, e.firstWord) {
			return e, true
		}
	}
	return nameEntry{}, false
}

func entity(query string, c dictionary.Category, t *dictionary.Term) Resolved {
	clone := t.Clone()
	return Resolved{Kind: KindEntity, Query: query, Category: c, Entity: &clone}
}

func (r *Resolver) collection(query string, s specialtyEntry) Resolved {
	providers := r.bySpecialty[s.name]
	items := make([]dictionary.Term, len(providers))
	for i, p := range providers {
		items[i] = p.Clone()
	}
	return Resolved{
		Kind:       KindCollection,
		Query:      query,
		Category:   dictionary.CategorySpecialty,
		EntityType: dictionary.CategoryProvider,
		Specialty:  s.text,
		Items:      items,
	}
}
