package utils

// SuggestionFilter drops suggestions whose key was already seen in a single
// result list. It is not safe for concurrent use; build one per call.
type SuggestionFilter struct {
	seen map[string]struct{}
}

// NewSuggestionFilter creates a filter with room for n keys
func NewSuggestionFilter(n int) *SuggestionFilter {
	return &SuggestionFilter{seen: make(map[string]struct{}, n)}
}

// ShouldInclude reports whether key is new, and records it.
func (f *SuggestionFilter) ShouldInclude(key string) bool {
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// DedupKey builds the filter key of a term. A non-empty id is the identity;
// without one the category and normalized text stand in.
func DedupKey(id, category, text string) string {
	if id != "" {
		return "#" + id
	}
	return category + "\x00" + Normalize(text)
}
