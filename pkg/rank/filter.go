package rank

import (
	"math"
	"strings"

	"github.com/mariohealth/marioserve/pkg/dictionary"
)

// SortBy selects the ordering of a ranked page
type SortBy string

const (
	SortBestValue SortBy = "best_value"
	SortPriceLow  SortBy = "price_low"
	SortPriceHigh SortBy = "price_high"
	SortDistance  SortBy = "distance"
	SortRating    SortBy = "rating"
	SortNameAsc   SortBy = "name_asc"
	SortNameDesc  SortBy = "name_desc"
)

// SortOptions lists every sort mode with its display label
var SortOptions = []struct {
	SortBy SortBy
	Label  string
}{
	{SortBestValue, "Best Value"},
	{SortPriceLow, "Price (Low to High)"},
	{SortPriceHigh, "Price (High to Low)"},
	{SortDistance, "Distance (Nearest)"},
	{SortRating, "Rating (Highest)"},
	{SortNameAsc, "Name (A-Z)"},
	{SortNameDesc, "Name (Z-A)"},
}

// ParseSortBy accepts the canonical names and the dashed variants
// ("price-asc", "name-desc"). Anything else falls back to best value.
func ParseSortBy(s string) SortBy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best_value", "best-value", "bestvalue":
		return SortBestValue
	case "price_low", "price-low", "price-asc", "price_asc":
		return SortPriceLow
	case "price_high", "price-high", "price-desc", "price_desc":
		return SortPriceHigh
	case "distance":
		return SortDistance
	case "rating":
		return SortRating
	case "name_asc", "name-asc":
		return SortNameAsc
	case "name_desc", "name-desc":
		return SortNameDesc
	}
	return SortBestValue
}

// ParseNetwork maps "In-Network", "in network", "out_network" and similar
// onto the canonical network values. Unknown input means all.
func ParseNetwork(s string) string {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	switch n {
	case dictionary.NetworkIn, "in", "innetwork":
		return dictionary.NetworkIn
	case dictionary.NetworkOut, "out", "outnetwork", "out_of_network":
		return dictionary.NetworkOut
	}
	return dictionary.NetworkAll
}

// FilterSpec is an immutable filter and sort selection. Use the With
// helpers to derive modified copies.
type FilterSpec struct {
	Network     string     `json:"network" msgpack:"network"`
	MaxDistance float64    `json:"max_distance" msgpack:"max_distance"`
	PriceRange  [2]float64 `json:"price_range" msgpack:"price_range"`
	SortBy      SortBy     `json:"sort_by" msgpack:"sort_by"`
}

// DefaultMaxDistance is the search radius in miles when none is given
const DefaultMaxDistance = 25

// DefaultFilterSpec passes every network and price within the default radius
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		Network:     dictionary.NetworkAll,
		MaxDistance: DefaultMaxDistance,
		PriceRange:  [2]float64{0, math.MaxFloat64},
		SortBy:      SortBestValue,
	}
}

// WithNetwork returns a copy filtering on network
func (f FilterSpec) WithNetwork(network string) FilterSpec {
	f.Network = ParseNetwork(network)
	return f
}

// WithMaxDistance returns a copy with a new radius
func (f FilterSpec) WithMaxDistance(miles float64) FilterSpec {
	f.MaxDistance = miles
	return f
}

// WithPriceRange returns a copy with a new inclusive price range
func (f FilterSpec) WithPriceRange(lo, hi float64) FilterSpec {
	f.PriceRange = [2]float64{lo, hi}
	return f
}

// WithSortBy returns a copy with a new ordering
func (f FilterSpec) WithSortBy(s SortBy) FilterSpec {
	f.SortBy = s
	return f
}

// Matches reports whether c passes the network, distance and price filters
func (f FilterSpec) Matches(c Candidate) bool {
	if f.Network != "" && f.Network != dictionary.NetworkAll && c.Network != f.Network {
		return false
	}
	if c.Distance > f.MaxDistance {
		return false
	}
	return f.PriceRange[0] <= c.Price && c.Price <= f.PriceRange[1]
}
