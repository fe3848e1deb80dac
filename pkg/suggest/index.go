package suggest

import (
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/fuzzy"
)

// Suggestion is the view of one matched term. The score orders results and
// is not exposed.
type Suggestion struct {
	ID       string              `json:"id" msgpack:"id"`
	Text     string              `json:"text" msgpack:"text"`
	Category dictionary.Category `json:"category" msgpack:"category"`
	Icon     string              `json:"icon" msgpack:"icon"`
	// Term points into the index vocabulary and must not be modified
	Term *dictionary.Term `json:"term,omitempty" msgpack:"term,omitempty"`
	// Matches are the [start, end) rune ranges of Text matching the query
	Matches [][2]int `json:"matches,omitempty" msgpack:"matches,omitempty"`

	score float64
}

// Options tunes scoring
type Options struct {
	// ContainmentBonus is added when the query is a literal substring of a
	// searchable string; it must exceed 1 so containment outranks any fuzzy score.
	ContainmentBonus float64
	// MinSimilarity is the fuzzy floor for terms without containment
	MinSimilarity float64
	// MinQueryLen suppresses suggestions for shorter normalized queries
	MinQueryLen int
	// CacheSize is the number of memoized lookups, 0 disables the cache
	CacheSize int
}

// DefaultOptions returns the standard scoring options
func DefaultOptions() Options {
	return Options{
		ContainmentBonus: 10,
		MinSimilarity:    0.6,
		MinQueryLen:      2,
		CacheSize:        1024,
	}
}

// entry is the precomputed, normalized search surface of one term
type entry struct {
	searchable []string
	words      []string
	dedupKey   string
}

// Index is an immutable autocomplete index over a vocabulary.
// It is safe for concurrent use; rebuild it when the vocabulary changes.
type Index struct {
	vocab   *dictionary.Vocabulary
	entries []entry
	trie    *wordTrie
	cache   *resultCache
	opts    Options
}

// NewIndex builds the index. Zero option fields fall back to the defaults.
func NewIndex(vocab *dictionary.Vocabulary, opts Options) *Index {
	def := DefaultOptions()
	if opts.ContainmentBonus <= 1 {
		opts.ContainmentBonus = def.ContainmentBonus
	}
	if opts.MinSimilarity <= 0 || opts.MinSimilarity > 1 {
		opts.MinSimilarity = def.MinSimilarity
	}
	if opts.MinQueryLen <= 0 {
		opts.MinQueryLen = def.MinQueryLen
	}

	idx := &Index{
		vocab:   vocab,
		entries: make([]entry, vocab.Len()),
		trie:    newWordTrie(),
		cache:   newResultCache(opts.CacheSize),
		opts:    opts,
	}

	for i := range idx.entries {
		term := vocab.At(i)
		e := &idx.entries[i]

		filter := utils.NewSuggestionFilter(len(term.Keywords) + 2)
		surfaces := append([]string{term.Text}, term.Keywords...)
		if s := term.Specialty(); s != "" {
			surfaces = append(surfaces, s)
		}
		for _, s := range surfaces {
			n := utils.Normalize(s)
			if n == "" || !filter.ShouldInclude(n) {
				continue
			}
			e.searchable = append(e.searchable, n)
			idx.trie.add(n, i)
			for _, w := range utils.Words(n) {
				e.words = append(e.words, w)
				idx.trie.add(w, i)
			}
		}
		id := term.ID
		if vocab.AssignedID(i) {
			id = ""
		}
		e.dedupKey = utils.DedupKey(id, string(term.Category), term.Text)
	}

	log.Debugf("Built suggestion index: %d terms, %d trie keys", len(idx.entries), idx.trie.keys)
	return idx
}

// Len returns the number of indexed terms
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Vocabulary returns the indexed vocabulary
func (idx *Index) Vocabulary() *dictionary.Vocabulary {
	return idx.vocab
}

// Suggest ranks terms by containment bonus plus fuzzy similarity. Queries
// shorter than the minimum normalized length, a non-positive limit or an
// empty index yield an empty list. Never returns more than limit items.
func (idx *Index) Suggest(query string, limit int) []Suggestion {
	return idx.lookup(modeSuggest, query, limit)
}

// Prefix returns terms having a word, or full text, that starts with the
// query, in vocabulary order.
func (idx *Index) Prefix(query string, limit int) []Suggestion {
	return idx.lookup(modePrefix, query, limit)
}

// Substring returns only terms that literally contain the query
func (idx *Index) Substring(query string, limit int) []Suggestion {
	return idx.lookup(modeSubstring, query, limit)
}

// Fuzzy returns terms by similarity alone, dropping those under the floor
func (idx *Index) Fuzzy(query string, limit int) []Suggestion {
	return idx.lookup(modeFuzzy, query, limit)
}

func (idx *Index) lookup(mode lookupMode, query string, limit int) []Suggestion {
	if idx == nil || limit <= 0 || len(idx.entries) == 0 {
		return []Suggestion{}
	}
	q := utils.Normalize(query)
	if len([]rune(q)) < idx.opts.MinQueryLen {
		return []Suggestion{}
	}

	key := cacheKey{mode: mode, query: q, limit: limit}
	if cached, ok := idx.cache.get(key); ok {
		return cached
	}

	var results []Suggestion
	if mode == modePrefix {
		results = idx.prefix(q, limit)
	} else {
		results = idx.score(mode, q, limit)
	}
	for i := range results {
		results[i].Matches = utils.MatchRanges(results[i].Text, q)
	}
	idx.cache.add(key, results)
	return results
}

func (idx *Index) prefix(q string, limit int) []Suggestion {
	ids := idx.trie.search(q)
	results := make([]Suggestion, 0, min(len(ids), limit))
	filter := utils.NewSuggestionFilter(len(ids))
	for _, i := range ids {
		if len(results) >= limit {
			break
		}
		if !filter.ShouldInclude(idx.entries[i].dedupKey) {
			continue
		}
		results = append(results, idx.suggestion(i, 0))
	}
	return results
}

type scored struct {
	i     int
	score float64
}

func (idx *Index) score(mode lookupMode, q string, limit int) []Suggestion {
	var candidates []scored
	for i := range idx.entries {
		e := &idx.entries[i]

		contained := false
		if mode != modeFuzzy {
			for _, s := range e.searchable {
				if strings.Contains(s, q) {
					contained = true
					break
				}
			}
		}

		var sim float64
		if mode != modeSubstring || contained {
			sim = e.similarity(q)
		}

		var score float64
		switch mode {
		case modeSubstring:
			if !contained {
				continue
			}
			score = idx.opts.ContainmentBonus + sim
		case modeFuzzy:
			if sim < idx.opts.MinSimilarity {
				continue
			}
			score = sim
		default:
			if !contained && sim < idx.opts.MinSimilarity {
				continue
			}
			score = sim
			if contained {
				score += idx.opts.ContainmentBonus
			}
		}
		candidates = append(candidates, scored{i: i, score: score})
	}

	// stable: equal scores keep vocabulary order
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	results := make([]Suggestion, 0, min(len(candidates), limit))
	filter := utils.NewSuggestionFilter(len(candidates))
	for _, c := range candidates {
		if len(results) >= limit {
			break
		}
		if !filter.ShouldInclude(idx.entries[c.i].dedupKey) {
			continue
		}
		results = append(results, idx.suggestion(c.i, c.score))
	}
	return results
}

// similarity is the best score of q against every searchable string and word
func (e *entry) similarity(q string) float64 {
	best := 0.0
	for _, s := range e.searchable {
		best = max(best, fuzzy.Similarity(q, s))
	}
	for _, w := range e.words {
		best = max(best, fuzzy.Similarity(q, w))
	}
	return best
}

func (idx *Index) suggestion(i int, score float64) Suggestion {
	term := idx.vocab.At(i)
	return Suggestion{
		ID:       term.ID,
		Text:     term.Text,
		Category: term.Category,
		Icon:     term.Category.Icon(),
		Term:     term,
		score:    score,
	}
}

// Stats returns index and cache statistics
func (idx *Index) Stats() map[string]int {
	if idx == nil {
		return map[string]int{"totalTerms": 0, "trieKeys": 0}
	}
	stats := idx.cache.stats()
	stats["totalTerms"] = idx.Len()
	stats["trieKeys"] = idx.trie.keys
	return stats
}
