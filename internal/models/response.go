package models

type SearchMetadata struct {
	TotalResults          int               `json:"total_results"`
	TotalBeforeCap        int               `json:"total_before_cap"`
	Mode                  SearchMode        `json:"mode"`
	ContributingSuppliers []string          `json:"contributing_suppliers"`
	FailedSuppliers       []SupplierFailure `json:"failed_suppliers,omitempty"`
	Warnings              []string          `json:"warnings,omitempty"`
	Fingerprint           string            `json:"fingerprint"`
	SortBy                SortKey           `json:"sort_by"`
	SortOrder             SortDirection     `json:"sort_order"`
	SearchTimeMs          int64             `json:"search_time_ms"`
	CacheHit              bool              `json:"cache_hit"`
	RequestID             string            `json:"request_id,omitempty"`
}

type SearchCriteria struct {
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureDate string         `json:"departure_date"`
	ReturnDate    string         `json:"return_date,omitempty"`
	TripType      TripType       `json:"trip_type"`
	Legs          []Leg          `json:"legs,omitempty"`
	Passengers    Passengers     `json:"passengers"`
	CabinClass    Cabin          `json:"cabin_class"`
	Filters       *SearchFilters `json:"filters,omitempty"`
}

type SearchResponse struct {
	SearchCriteria SearchCriteria `json:"search_criteria"`
	Metadata       SearchMetadata `json:"metadata"`
	Offers         []Offer        `json:"offers"`
}

type ErrorResponse struct {
	Error           string            `json:"error"`
	Message         string            `json:"message"`
	Code            int               `json:"code"`
	FailedSuppliers []SupplierFailure `json:"failed_suppliers,omitempty"`
}
