package models

import "time"

type SortKey string

const (
	SortPrice     SortKey = "price"
	SortDuration  SortKey = "duration"
	SortDeparture SortKey = "departure"
	SortBestValue SortKey = "best_value"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortPrice, SortDuration, SortDeparture, SortBestValue:
		return true
	}
	return false
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// WarningMixedCurrency is set when prices in different currencies could not be
// converted and offers were ordered within per-currency groups instead.
const WarningMixedCurrency = "mixed_currency_grouped"

// SupplierOffers is one supplier's successful contribution to a search.
type SupplierOffers struct {
	Supplier string
	Offers   []Offer
}

type SupplierFailure struct {
	Supplier string    `json:"supplier"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message,omitempty"`
}

// MergedResultSet is the ordered, deduplicated result of one search. Values
// handed out by the cache are shared and must be treated as read-only.
type MergedResultSet struct {
	Fingerprint  string            `json:"fingerprint"`
	Offers       []Offer           `json:"offers"`
	SortKey      SortKey           `json:"sort_key"`
	Direction    SortDirection     `json:"sort_direction"`
	TotalCount   int               `json:"total_count"`
	Contributing []string          `json:"contributing_suppliers"`
	Failed       []SupplierFailure `json:"failed_suppliers,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

func (r *MergedResultSet) HasWarning(w string) bool {
	for _, x := range r.Warnings {
		if x == w {
			return true
		}
	}
	return false
}
