package rank

import (
	"sort"

	"github.com/mariohealth/marioserve/internal/utils"
)

// Config holds the ranker's tunables
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	// PriceWeight and SavingsWeight weight the best value score. Both must be
	// positive so that a cheaper candidate only loses to a pricier one that
	// also saves strictly more.
	PriceWeight   float64
	SavingsWeight float64
}

// DefaultConfig returns the standard paging and best value weights
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		PriceWeight:     0.6,
		SavingsWeight:   0.4,
	}
}

// PageRequest selects a window of the ordered results
type PageRequest struct {
	Offset int `json:"offset" msgpack:"offset"`
	Limit  int `json:"limit" msgpack:"limit"`
}

// Page is one window of ranked candidates.
// 0 <= Offset <= TotalCount, len(Items) <= Limit and TotalCount >= len(Items).
type Page struct {
	Items      []Candidate `json:"items" msgpack:"items"`
	Offset     int         `json:"offset" msgpack:"offset"`
	Limit      int         `json:"limit" msgpack:"limit"`
	TotalCount int         `json:"total_count" msgpack:"total_count"`
	SortBy     SortBy      `json:"sort_by" msgpack:"sort_by"`
}

// Ranker applies filters, ordering and pagination. It holds no state
// beyond its config and is safe for concurrent use.
type Ranker struct {
	cfg Config
}

// NewRanker creates a ranker; invalid config values fall back to the defaults
func NewRanker(cfg Config) *Ranker {
	def := DefaultConfig()
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = def.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	if cfg.PriceWeight <= 0 || cfg.SavingsWeight <= 0 {
		cfg.PriceWeight, cfg.SavingsWeight = def.PriceWeight, def.SavingsWeight
	}
	return &Ranker{cfg: cfg}
}

// Config returns the effective configuration
func (r *Ranker) Config() Config {
	return r.cfg
}

type ranked struct {
	c     Candidate
	score float64
	name  string
}

// Rank filters candidates by spec, orders them by spec.SortBy and returns
// the requested page. The input slice is not modified. An unknown sort mode
// orders by best value.
func (r *Ranker) Rank(candidates []Candidate, spec FilterSpec, page PageRequest) Page {
	sortBy := ParseSortBy(string(spec.SortBy))

	items := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		c = c.Sanitized()
		if spec.Matches(c) {
			items = append(items, ranked{c: c})
		}
	}

	switch sortBy {
	case SortBestValue:
		r.scoreBestValue(items)
	case SortNameAsc, SortNameDesc:
		for i := range items {
			items[i].name = utils.Normalize(items[i].c.Name)
		}
	}

	less := comparator(sortBy)
	sort.SliceStable(items, func(i, j int) bool {
		return less(&items[i], &items[j])
	})

	total := len(items)
	limit := page.Limit
	if limit <= 0 {
		limit = r.cfg.DefaultPageSize
	}
	limit = min(limit, r.cfg.MaxPageSize)
	offset := min(max(page.Offset, 0), total)
	end := min(offset+limit, total)

	out := make([]Candidate, 0, end-offset)
	for _, it := range items[offset:end] {
		out = append(out, it.c)
	}
	return Page{
		Items:      out,
		Offset:     offset,
		Limit:      limit,
		TotalCount: total,
		SortBy:     sortBy,
	}
}

// scoreBestValue computes PriceWeight*(max-price)/(max-floor) +
// SavingsWeight*(savings/100) over the filtered set, where floor is the
// lowest price or 0, whichever is smaller. For non-negative prices this is
// 1 - price/max. The price term is 0 for everyone when all prices are equal.
func (r *Ranker) scoreBestValue(items []ranked) {
	if len(items) == 0 {
		return
	}
	floor, top := 0.0, items[0].c.Price
	for _, it := range items {
		floor = min(floor, it.c.Price)
		top = max(top, it.c.Price)
	}
	spread := top - floor
	for i := range items {
		priceTerm := 0.0
		if spread > 0 {
			priceTerm = (top - items[i].c.Price) / spread
		}
		items[i].score = r.cfg.PriceWeight*priceTerm + r.cfg.SavingsWeight*(items[i].c.SavingsPercent/100)
	}
}

type lessFunc func(a, b *ranked) bool

// comparator returns the full ordering of a sort mode, ending with ID so
// repeated sorts of the same input agree.
func comparator(sortBy SortBy) lessFunc {
	switch sortBy {
	case SortPriceLow:
		return chain(byFloat(func(r *ranked) float64 { return r.c.Price }, false), byRating, byID)
	case SortPriceHigh:
		return chain(byFloat(func(r *ranked) float64 { return r.c.Price }, true), byRating, byID)
	case SortDistance:
		return chain(byFloat(func(r *ranked) float64 { return r.c.Distance }, false), byRating, byID)
	case SortRating:
		return chain(byRating, byReviews, byID)
	case SortNameAsc:
		return chain(byName(false), byID)
	case SortNameDesc:
		return chain(byName(true), byID)
	default:
		// featured pick only breaks ties of the score
		return chain(byFloat(func(r *ranked) float64 { return r.score }, true), byFeatured, byRating, byReviews, byID)
	}
}

// chain orders by the first comparator that separates a and b
func chain(fns ...lessFunc) lessFunc {
	return func(a, b *ranked) bool {
		for _, less := range fns {
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		}
		return false
	}
}

func byFloat(key func(*ranked) float64, desc bool) lessFunc {
	return func(a, b *ranked) bool {
		if desc {
			return key(a) > key(b)
		}
		return key(a) < key(b)
	}
}

func byRating(a, b *ranked) bool { return a.c.Rating > b.c.Rating }

func byReviews(a, b *ranked) bool { return a.c.ReviewCount > b.c.ReviewCount }

func byFeatured(a, b *ranked) bool { return a.c.IsFeaturedPick && !b.c.IsFeaturedPick }

func byID(a, b *ranked) bool { return a.c.ID < b.c.ID }

func byName(desc bool) lessFunc {
	return func(a, b *ranked) bool {
		if desc {
			return a.name > b.name
		}
		return a.name < b.name
	}
}
