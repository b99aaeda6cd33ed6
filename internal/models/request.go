package models

import "strings"

type SearchFilters struct {
	PriceMin         *float64 `json:"price_min,omitempty"`
	PriceMax         *float64 `json:"price_max,omitempty"`
	MaxStops         *int     `json:"max_stops,omitempty"`
	Airlines         []string `json:"airlines,omitempty"`
	DepartureTimeMin *string  `json:"departure_time_min,omitempty"`
	DepartureTimeMax *string  `json:"departure_time_max,omitempty"`
	ArrivalTimeMin   *string  `json:"arrival_time_min,omitempty"`
	ArrivalTimeMax   *string  `json:"arrival_time_max,omitempty"`
	MaxDuration      *int     `json:"max_duration,omitempty"`
}

type SearchRequest struct {
	Origin        string         `json:"origin"`
	Destination   string         `json:"destination"`
	DepartureDate string         `json:"departure_date"`
	ReturnDate    *string        `json:"return_date,omitempty"`
	TripType      string         `json:"trip_type,omitempty"`
	Legs          []Leg          `json:"legs,omitempty"`
	Passengers    Passengers     `json:"passengers"`
	CabinClass    string         `json:"cabin_class"`
	Mode          string         `json:"mode,omitempty"`
	Filters       *SearchFilters `json:"filters,omitempty"`
	SortBy        string         `json:"sort_by,omitempty"`
	SortOrder     string         `json:"sort_order,omitempty"`
}

// Query converts the request into a validated SearchQuery.
func (r *SearchRequest) Query() (SearchQuery, error) {
	q := SearchQuery{
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureDate: r.DepartureDate,
		Passengers:    r.Passengers,
		Cabin:         Cabin(r.CabinClass),
		TripType:      TripType(r.TripType),
		Legs:          r.Legs,
	}
	if r.ReturnDate != nil {
		q.ReturnDate = *r.ReturnDate
	}
	return NewSearchQuery(q)
}

// SearchMode returns the requested mode override, or "" when none was given.
func (r *SearchRequest) SearchMode() (SearchMode, error) {
	if r.Mode == "" {
		return "", nil
	}
	m := SearchMode(strings.ToLower(r.Mode))
	if !m.Valid() {
		return "", ErrInvalidMode
	}
	return m, nil
}

// Sort returns the requested ordering override. Empty values mean "as merged".
func (r *SearchRequest) Sort() (SortKey, SortDirection, error) {
	key := SortKey(strings.ToLower(r.SortBy))
	dir := SortDirection(strings.ToLower(r.SortOrder))
	if key != "" && !key.Valid() {
		return "", "", ErrInvalidSortKey
	}
	if dir != "" && !dir.Valid() {
		return "", "", ErrInvalidSortOrder
	}
	return key, dir, nil
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin         ValidationError = "origin is required"
	ErrMissingDestination    ValidationError = "destination is required"
	ErrMissingDepartureDate  ValidationError = "departure_date is required"
	ErrMissingReturnDate     ValidationError = "return_date is required for round trips"
	ErrUnexpectedReturnDate  ValidationError = "return_date is not allowed for one way trips"
	ErrReturnBeforeDeparture ValidationError = "return_date must not be before departure_date"
	ErrInvalidDate           ValidationError = "dates must use the YYYY-MM-DD format"
	ErrInvalidAirportCode    ValidationError = "airport codes must be three letter IATA codes"
	ErrSameOriginDestination ValidationError = "origin and destination must differ"
	ErrInvalidCabin          ValidationError = "cabin_class must be economy, premium_economy, business or first"
	ErrInvalidTripType       ValidationError = "trip_type must be one_way, round_trip or multi_city"
	ErrInvalidLegCount       ValidationError = "multi city trips need between 2 and 6 legs"
	ErrLegsOutOfOrder        ValidationError = "multi city legs must be in date order"
	ErrInvalidPassengers     ValidationError = "passenger counts must not be negative"
	ErrMissingAdult          ValidationError = "at least one adult is required"
	ErrTooManyInfants        ValidationError = "each infant must travel with an adult"
	ErrTooManyPassengers     ValidationError = "no more than 9 seated passengers per search"
	ErrInvalidMode           ValidationError = "mode must be local, external or hybrid"
	ErrInvalidSortKey        ValidationError = "sort_by must be price, duration, departure or best_value"
	ErrInvalidSortOrder      ValidationError = "sort_order must be asc or desc"
	ErrInvalidTimeFilter     ValidationError = "time filters must use the HH:MM format"
)
