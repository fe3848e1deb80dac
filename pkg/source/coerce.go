package source

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/cast"

	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/dictionary"
	"github.com/mariohealth/marioserve/pkg/rank"
)

// Warning describes one field that could not be used as delivered and was
// replaced by its fallback
type Warning struct {
	Record string
	Field  string
	Value  any
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s.%s=%v: %s", w.Record, w.Field, w.Value, w.Reason)
}

// Coercer turns loosely typed provider records into terms and candidates.
// It never fails: unusable values become 0, "" or false and are reported.
// A Coercer is safe for concurrent use.
type Coercer struct {
	onWarn   func(Warning)
	warnings atomic.Int64
}

// NewCoercer creates a coercer. onWarn receives every coercion warning;
// when nil, warnings are logged at debug level.
func NewCoercer(onWarn func(Warning)) *Coercer {
	if onWarn == nil {
		onWarn = func(w Warning) { log.Debugf("Coerced %s", w) }
	}
	return &Coercer{onWarn: onWarn}
}

// Warnings returns how many warnings were reported so far
func (c *Coercer) Warnings() int64 {
	return c.warnings.Load()
}

func (c *Coercer) warn(rec, field string, value any, reason string) {
	c.warnings.Add(1)
	c.onWarn(Warning{Record: rec, Field: field, Value: value, Reason: reason})
}

// Field aliases accepted on the wire, in lookup order
var (
	idKeys        = []string{"id", "provider_id", "procedure_id", "medication_id"}
	nameKeys      = []string{"name", "text", "display_name", "provider_name", "procedure_name", "medication_name"}
	categoryKeys  = []string{"category", "type", "kind"}
	priceKeys     = []string{"best_price", "price", "pricing.min_price", "cash_price", "cashPrice"}
	origKeys      = []string{"original_price", "originalPrice", "pricing.max_price"}
	savingsKeys   = []string{"savings_percent", "savings"}
	distanceKeys  = []string{"distance", "nearest_distance_miles", "distance_miles"}
	ratingKeys    = []string{"rating"}
	reviewKeys    = []string{"review_count", "reviews"}
	networkKeys   = []string{"network", "in_network"}
	featuredKeys  = []string{"is_featured_pick", "marios_pick", "marioPick"}
	pointsKeys    = []string{"points", "rewards"}
	specialtyKeys = []string{"specialty", "speciality"}
	keywordKeys   = []string{"keywords", "aliases"}
)

// lookup finds the first present key. Dotted keys descend into nested maps.
func lookup(rec dictionary.Record, keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := dig(rec, k); ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

func dig(rec dictionary.Record, key string) (any, bool) {
	head, rest, nested := strings.Cut(key, ".")
	v, ok := rec[head]
	if !ok || !nested {
		return v, ok
	}
	inner, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return dig(inner, rest)
}

// recordName labels warnings with whatever identifies the record
func recordName(rec dictionary.Record) string {
	for _, keys := range [][]string{idKeys, nameKeys} {
		if _, v, ok := lookup(rec, keys); ok {
			if s := cast.ToString(v); s != "" {
				return s
			}
		}
	}
	return "record"
}

func (c *Coercer) str(rec dictionary.Record, label string, keys []string) string {
	field, v, ok := lookup(rec, keys)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		c.warn(label, field, v, "not a string")
		return ""
	}
	return strings.TrimSpace(s)
}

// number reads a numeric field. Strings are parsed the way display values
// are written: "$1,250" and "2.3 mi" both work. Missing fields are 0
// without a warning.
func (c *Coercer) number(rec dictionary.Record, label string, keys []string) float64 {
	field, v, ok := lookup(rec, keys)
	if !ok {
		return 0
	}
	return c.toNumber(label, field, v, false)
}

func (c *Coercer) toNumber(label, field string, v any, whole bool) float64 {
	if s, isString := v.(string); isString {
		return c.display(label, field, s, whole)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		c.warn(label, field, v, "not a number")
		return 0
	}
	if utils.Finite(f) != f {
		c.warn(label, field, v, "not finite")
		return 0
	}
	return f
}

// display parses a formatted number. Counts (whole) ignore everything
// after the decimal point, so "1,250.0 reviews" is 1250. A minus sign
// before the digits is kept and reported.
func (c *Coercer) display(label, field, raw string, whole bool) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	first := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if first < 0 {
		c.warn(label, field, raw, "no digits")
		return 0
	}

	var f float64
	if whole {
		intPart, _, _ := strings.Cut(s, ".")
		f = utils.ExtractPrice(intPart)
	} else {
		f = utils.ExtractFloat(s)
	}
	if strings.ContainsRune(s[:first], '-') && f != 0 {
		c.warn(label, field, raw, "negative value")
		return -f
	}
	return f
}

// percent reads a savings field: a number is taken as is, a string uses
// its first "NN%"
func (c *Coercer) percent(rec dictionary.Record, label string, keys []string) float64 {
	field, v, ok := lookup(rec, keys)
	if !ok {
		return 0
	}
	if s, isString := v.(string); isString {
		if strings.Contains(s, "%") {
			return utils.ExtractPercent(s)
		}
		if strings.TrimSpace(s) != "" {
			c.warn(label, field, v, "no percentage")
		}
		return 0
	}
	return c.number(rec, label, []string{field})
}

// integer reads a count. Fractions are truncated; values outside the int
// range fall back to 0.
func (c *Coercer) integer(rec dictionary.Record, label string, keys []string) int {
	field, v, ok := lookup(rec, keys)
	if !ok {
		return 0
	}
	f := math.Trunc(c.toNumber(label, field, v, true))
	// float64(math.MaxInt) rounds up to 2^63, which is itself out of range
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		c.warn(label, field, v, "out of range")
		return 0
	}
	return int(f)
}

func (c *Coercer) flag(rec dictionary.Record, label string, keys []string) bool {
	field, v, ok := lookup(rec, keys)
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		c.warn(label, field, v, "not a boolean")
		return false
	}
	return b
}

// network accepts "In-Network" style strings or an in_network boolean.
// Unknown values yield "".
func (c *Coercer) network(rec dictionary.Record, label string) string {
	field, v, ok := lookup(rec, networkKeys)
	if !ok {
		return ""
	}
	if s, isString := v.(string); isString {
		n := rank.ParseNetwork(s)
		if n == dictionary.NetworkAll {
			if strings.TrimSpace(s) != "" {
				c.warn(label, field, v, "unknown network")
			}
			return ""
		}
		return n
	}
	in, err := cast.ToBoolE(v)
	if err != nil {
		c.warn(label, field, v, "unknown network")
		return ""
	}
	if in {
		return dictionary.NetworkIn
	}
	return dictionary.NetworkOut
}

func (c *Coercer) list(rec dictionary.Record, label string, keys []string) []string {
	field, v, ok := lookup(rec, keys)
	if !ok {
		return nil
	}
	if _, isSlice := v.([]any); !isSlice {
		if _, isStrings := v.([]string); !isStrings {
			c.warn(label, field, v, "not an array")
			return nil
		}
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		c.warn(label, field, v, "not an array of strings")
		return nil
	}
	return out
}

// Term converts a vocabulary record. It reports false when the record has
// no name or no known category.
func (c *Coercer) Term(rec dictionary.Record) (dictionary.Term, bool) {
	label := recordName(rec)

	name := c.str(rec, label, nameKeys)
	if name == "" {
		c.warn(label, "name", nil, "missing name")
		return dictionary.Term{}, false
	}
	catField, catValue, _ := lookup(rec, categoryKeys)
	category, ok := dictionary.ParseCategory(cast.ToString(catValue))
	if !ok {
		c.warn(label, catField, catValue, "unknown category")
		return dictionary.Term{}, false
	}

	t := dictionary.Term{
		ID:       c.str(rec, label, idKeys),
		Text:     name,
		Category: category,
		Keywords: c.list(rec, label, keywordKeys),
	}

	switch category {
	case dictionary.CategoryProvider:
		specialty := c.str(rec, label, specialtyKeys)
		t.Provider = &dictionary.ProviderInfo{
			Specialty:      specialty,
			Price:          c.number(rec, label, priceKeys),
			SavingsPercent: c.percent(rec, label, savingsKeys),
			Rating:         c.number(rec, label, ratingKeys),
			ReviewCount:    c.integer(rec, label, reviewKeys),
			Distance:       c.number(rec, label, distanceKeys),
			Network:        c.network(rec, label),
			IsFeaturedPick: c.flag(rec, label, featuredKeys),
			Points:         c.integer(rec, label, pointsKeys),
		}
		if specialty != "" && len(t.Keywords) == 0 {
			t.Keywords = []string{specialty}
		}
	case dictionary.CategoryProcedure:
		t.Procedure = &dictionary.ProcedureInfo{
			Facility:       c.str(rec, label, []string{"facility", "facility_name"}),
			Price:          c.number(rec, label, priceKeys),
			OriginalPrice:  c.number(rec, label, origKeys),
			SavingsPercent: c.percent(rec, label, savingsKeys),
			Distance:       c.number(rec, label, distanceKeys),
			Rating:         c.number(rec, label, ratingKeys),
			ReviewCount:    c.integer(rec, label, reviewKeys),
			Network:        c.network(rec, label),
			Points:         c.integer(rec, label, pointsKeys),
		}
	case dictionary.CategoryMedication:
		t.Medication = &dictionary.MedicationInfo{
			Dosage:         c.str(rec, label, []string{"dosage", "strength"}),
			CashPrice:      c.number(rec, label, []string{"cash_price", "cashPrice", "price"}),
			InsurancePrice: c.number(rec, label, []string{"insurance_price", "insurancePrice"}),
			SavingsPercent: c.percent(rec, label, savingsKeys),
			IsFeaturedPick: c.flag(rec, label, featuredKeys),
		}
	}
	return t, true
}

// Terms converts every usable record, keeping order
func (c *Coercer) Terms(recs []dictionary.Record) []dictionary.Term {
	out := make([]dictionary.Term, 0, len(recs))
	for _, rec := range recs {
		if t, ok := c.Term(rec); ok {
			out = append(out, t)
		}
	}
	return out
}

// Candidate converts a search result record. It reports false only when the
// record has no name.
func (c *Coercer) Candidate(rec dictionary.Record) (rank.Candidate, bool) {
	label := recordName(rec)

	name := c.str(rec, label, nameKeys)
	if name == "" {
		c.warn(label, "name", nil, "missing name")
		return rank.Candidate{}, false
	}

	kind := rank.KindProvider
	if _, v, ok := lookup(rec, categoryKeys); ok {
		switch cat, _ := dictionary.ParseCategory(cast.ToString(v)); cat {
		case dictionary.CategoryProcedure:
			kind = rank.KindFacility
		case dictionary.CategoryMedication:
			kind = rank.KindMedication
		}
	}

	cand := rank.Candidate{
		ID:             c.str(rec, label, idKeys),
		Name:           name,
		Specialty:      c.str(rec, label, specialtyKeys),
		Kind:           kind,
		Price:          c.number(rec, label, priceKeys),
		OriginalPrice:  c.number(rec, label, origKeys),
		SavingsPercent: c.percent(rec, label, savingsKeys),
		Distance:       c.number(rec, label, distanceKeys),
		Rating:         c.number(rec, label, ratingKeys),
		ReviewCount:    c.integer(rec, label, reviewKeys),
		Network:        c.network(rec, label),
		IsFeaturedPick: c.flag(rec, label, featuredKeys),
		Points:         c.integer(rec, label, pointsKeys),
	}
	return cand, true
}

// Candidates converts every usable record, keeping order. Records without
// an ID get "candidate-<n>" so ordering ties stay deterministic.
func (c *Coercer) Candidates(recs []dictionary.Record) []rank.Candidate {
	out := make([]rank.Candidate, 0, len(recs))
	for _, rec := range recs {
		cand, ok := c.Candidate(rec)
		if !ok {
			continue
		}
		if cand.ID == "" {
			cand.ID = fmt.Sprintf("candidate-%d", len(out))
		}
		out = append(out, cand)
	}
	return out
}
