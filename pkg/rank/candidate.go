// Package rank filters, orders and paginates result candidates.
package rank

import (
	"github.com/mariohealth/marioserve/internal/utils"
	"github.com/mariohealth/marioserve/pkg/dictionary"
)

// Candidate kinds
const (
	KindProvider   = "provider"
	KindFacility   = "facility"
	KindMedication = "medication"
)

// Candidate is one rankable result. Numeric fields are always finite; the
// source layer turns missing or unparseable values into 0.
type Candidate struct {
	ID             string  `json:"id" msgpack:"id"`
	Name           string  `json:"name" msgpack:"name"`
	Specialty      string  `json:"specialty,omitempty" msgpack:"specialty,omitempty"`
	Kind           string  `json:"kind" msgpack:"kind"`
	Price          float64 `json:"price" msgpack:"price"`
	OriginalPrice  float64 `json:"original_price,omitempty" msgpack:"original_price,omitempty"`
	SavingsPercent float64 `json:"savings_percent" msgpack:"savings_percent"`
	Distance       float64 `json:"distance" msgpack:"distance"`
	Rating         float64 `json:"rating" msgpack:"rating"`
	ReviewCount    int     `json:"review_count" msgpack:"review_count"`
	Network        string  `json:"network" msgpack:"network"`
	IsFeaturedPick bool    `json:"is_featured_pick" msgpack:"is_featured_pick"`
	Points         int     `json:"points,omitempty" msgpack:"points,omitempty"`
}

// Sanitized returns c with every float replaced by 0 when not finite
func (c Candidate) Sanitized() Candidate {
	c.Price = utils.Finite(c.Price)
	c.OriginalPrice = utils.Finite(c.OriginalPrice)
	c.SavingsPercent = utils.Finite(c.SavingsPercent)
	c.Distance = utils.Finite(c.Distance)
	c.Rating = utils.Finite(c.Rating)
	return c
}

// FromTerm projects a resolved provider, procedure or medication term onto
// a candidate so resolved results can be ranked directly. Specialty terms
// have no candidate form and report false.
func FromTerm(t dictionary.Term) (Candidate, bool) {
	c := Candidate{ID: t.ID, Name: t.Text}

	switch {
	case t.Category == dictionary.CategoryProvider && t.Provider != nil:
		p := t.Provider
		c.Kind = KindProvider
		c.Specialty = p.Specialty
		c.Price = p.Price
		c.SavingsPercent = p.SavingsPercent
		c.Distance = p.Distance
		c.Rating = p.Rating
		c.ReviewCount = p.ReviewCount
		c.Network = p.Network
		c.IsFeaturedPick = p.IsFeaturedPick
		c.Points = p.Points
	case t.Category == dictionary.CategoryProcedure && t.Procedure != nil:
		p := t.Procedure
		// a procedure result is listed under the facility performing it
		c.Kind = KindFacility
		c.Specialty = t.Text
		if p.Facility != "" {
			c.Name = p.Facility
		}
		c.Price = p.Price
		c.OriginalPrice = p.OriginalPrice
		c.SavingsPercent = p.SavingsPercent
		c.Distance = p.Distance
		c.Rating = p.Rating
		c.ReviewCount = p.ReviewCount
		c.Network = p.Network
		c.Points = p.Points
	case t.Category == dictionary.CategoryMedication && t.Medication != nil:
		m := t.Medication
		c.Kind = KindMedication
		c.Price = m.CashPrice
		c.OriginalPrice = m.InsurancePrice
		c.SavingsPercent = m.SavingsPercent
		c.IsFeaturedPick = m.IsFeaturedPick
	default:
		return Candidate{}, false
	}
	return c.Sanitized(), true
}

// FromTerms projects every term that has a candidate form, keeping order
func FromTerms(terms []dictionary.Term) []Candidate {
	out := make([]Candidate, 0, len(terms))
	for _, t := range terms {
		if c, ok := FromTerm(t); ok {
			out = append(out, c)
		}
	}
	return out
}
