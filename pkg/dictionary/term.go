// Package dictionary holds the searchable vocabulary of providers,
// specialties, procedures and medications, and reads it from snapshot files.
package dictionary

import "strings"

// Category is the entity type of a vocabulary term
type Category string

const (
	CategoryProvider   Category = "provider"
	CategorySpecialty  Category = "specialty"
	CategoryProcedure  Category = "procedure"
	CategoryMedication Category = "medication"
)

// Categories lists every category in resolution precedence order.
var Categories = []Category{CategoryProvider, CategorySpecialty, CategoryProcedure, CategoryMedication}

var categoryIcons = map[Category]string{
	CategoryProvider:   "👩‍⚕️",
	CategorySpecialty:  "🩺",
	CategoryProcedure:  "🔬",
	CategoryMedication: "💊",
}

const defaultIcon = "🔍"

// Icon returns the display glyph of the category
func (c Category) Icon() string {
	if icon, ok := categoryIcons[c]; ok {
		return icon
	}
	return defaultIcon
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	_, ok := categoryIcons[c]
	return ok
}

// ParseCategory maps the upstream type names onto a Category.
// "doctor" and "service"/"facility" are accepted aliases.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "provider", "doctor", "physician":
		return CategoryProvider, true
	case "specialty", "speciality":
		return CategorySpecialty, true
	case "procedure", "service", "facility":
		return CategoryProcedure, true
	case "medication", "drug", "rx":
		return CategoryMedication, true
	}
	return "", false
}

// Network values as they appear on candidates and filters
const (
	NetworkAll = "all"
	NetworkIn  = "in_network"
	NetworkOut = "out_network"
)

// ProviderInfo is the payload of a provider term
type ProviderInfo struct {
	Specialty      string  `json:"specialty" msgpack:"specialty"`
	Price          float64 `json:"price" msgpack:"price"`
	SavingsPercent float64 `json:"savings_percent" msgpack:"savings_percent"`
	Rating         float64 `json:"rating" msgpack:"rating"`
	ReviewCount    int     `json:"review_count" msgpack:"review_count"`
	Distance       float64 `json:"distance" msgpack:"distance"`
	Network        string  `json:"network" msgpack:"network"`
	IsFeaturedPick bool    `json:"is_featured_pick" msgpack:"is_featured_pick"`
	Points         int     `json:"points" msgpack:"points"`
}

// ProcedureInfo is the payload of a procedure term
type ProcedureInfo struct {
	Facility       string  `json:"facility,omitempty" msgpack:"facility,omitempty"`
	Price          float64 `json:"price" msgpack:"price"`
	OriginalPrice  float64 `json:"original_price" msgpack:"original_price"`
	SavingsPercent float64 `json:"savings_percent" msgpack:"savings_percent"`
	Distance       float64 `json:"distance" msgpack:"distance"`
	Rating         float64 `json:"rating" msgpack:"rating"`
	ReviewCount    int     `json:"review_count" msgpack:"review_count"`
	Network        string  `json:"network,omitempty" msgpack:"network,omitempty"`
	Points         int     `json:"points" msgpack:"points"`
}

// MedicationInfo is the payload of a medication term
type MedicationInfo struct {
	Dosage         string  `json:"dosage,omitempty" msgpack:"dosage,omitempty"`
	CashPrice      float64 `json:"cash_price" msgpack:"cash_price"`
	InsurancePrice float64 `json:"insurance_price" msgpack:"insurance_price"`
	SavingsPercent float64 `json:"savings_percent" msgpack:"savings_percent"`
	IsFeaturedPick bool    `json:"is_featured_pick" msgpack:"is_featured_pick"`
}

// Term is one searchable entity. At most one payload is set, matching Category.
type Term struct {
	ID         string          `json:"id" msgpack:"id"`
	Text       string          `json:"text" msgpack:"text"`
	Category   Category        `json:"category" msgpack:"category"`
	Keywords   []string        `json:"keywords,omitempty" msgpack:"keywords,omitempty"`
	Provider   *ProviderInfo   `json:"provider,omitempty" msgpack:"provider,omitempty"`
	Procedure  *ProcedureInfo  `json:"procedure,omitempty" msgpack:"procedure,omitempty"`
	Medication *MedicationInfo `json:"medication,omitempty" msgpack:"medication,omitempty"`
}

// Specialty returns the provider's specialty, or "" for other categories
func (t *Term) Specialty() string {
	if t.Provider == nil {
		return ""
	}
	return t.Provider.Specialty
}

// Clone deep-copies the term
func (t Term) Clone() Term {
	out := t
	if t.Keywords != nil {
		out.Keywords = append([]string(nil), t.Keywords...)
	}
	if t.Provider != nil {
		p := *t.Provider
		out.Provider = &p
	}
	if t.Procedure != nil {
		p := *t.Procedure
		out.Procedure = &p
	}
	if t.Medication != nil {
		m := *t.Medication
		out.Medication = &m
	}
	return out
}
