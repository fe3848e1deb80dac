// Package suggest ranks vocabulary terms against a partially typed query.
package suggest

// ISuggester defines the lookups an autocomplete index provides
type ISuggester interface {
	// Suggest returns the combined containment and fuzzy ranking for a query
	Suggest(query string, limit int) []Suggestion

	// Prefix returns terms with a word starting with the query
	Prefix(query string, limit int) []Suggestion

	// Substring returns only terms that literally contain the query
	Substring(query string, limit int) []Suggestion

	// Fuzzy returns only terms whose similarity reaches the floor, ignoring containment
	Fuzzy(query string, limit int) []Suggestion

	// Stats returns statistics about the index and its cache
	Stats() map[string]int
}

var _ ISuggester = (*Index)(nil)
