package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	maxSeatedPassengers = 9
	maxMultiCityLegs    = 6
)

type TripType string

const (
	TripOneWay    TripType = "one_way"
	TripRoundTrip TripType = "round_trip"
	TripMultiCity TripType = "multi_city"
)

type Cabin string

const (
	CabinEconomy        Cabin = "economy"
	CabinPremiumEconomy Cabin = "premium_economy"
	CabinBusiness       Cabin = "business"
	CabinFirst          Cabin = "first"
)

func (c Cabin) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// SearchMode selects which class of suppliers a search fans out to.
type SearchMode string

const (
	ModeLocal    SearchMode = "local"
	ModeExternal SearchMode = "external"
	ModeHybrid   SearchMode = "hybrid"
)

func (m SearchMode) Valid() bool {
	switch m {
	case ModeLocal, ModeExternal, ModeHybrid:
		return true
	}
	return false
}

type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// Seats is the number of passengers that occupy a seat. Infants travel on a lap.
func (p Passengers) Seats() int {
	return p.Adults + p.Children
}

type Leg struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

// SearchQuery is a validated, normalized travel query. Build it with
// NewSearchQuery and pass it by value; it is never mutated afterwards.
type SearchQuery struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Passengers    Passengers
	Cabin         Cabin
	TripType      TripType
	Legs          []Leg
}

// NewSearchQuery normalizes codes, fills defaults and validates the result.
func NewSearchQuery(q SearchQuery) (SearchQuery, error) {
	q.Origin = normalizeCode(q.Origin)
	q.Destination = normalizeCode(q.Destination)
	q.DepartureDate = strings.TrimSpace(q.DepartureDate)
	q.ReturnDate = strings.TrimSpace(q.ReturnDate)
	q.Cabin = Cabin(strings.ToLower(strings.TrimSpace(string(q.Cabin))))
	q.TripType = TripType(strings.ToLower(strings.TrimSpace(string(q.TripType))))

	if q.Cabin == "" {
		q.Cabin = CabinEconomy
	}
	if q.Passengers.Adults == 0 && q.Passengers.Children == 0 && q.Passengers.Infants == 0 {
		q.Passengers.Adults = 1
	}
	if q.TripType == "" {
		switch {
		case len(q.Legs) > 0:
			q.TripType = TripMultiCity
		case q.ReturnDate != "":
			q.TripType = TripRoundTrip
		default:
			q.TripType = TripOneWay
		}
	}

	if len(q.Legs) > 0 {
		legs := make([]Leg, len(q.Legs))
		for i, l := range q.Legs {
			legs[i] = Leg{
				Origin:      normalizeCode(l.Origin),
				Destination: normalizeCode(l.Destination),
				Date:        strings.TrimSpace(l.Date),
			}
		}
		q.Legs = legs
		if q.TripType == TripMultiCity {
			q.Origin = legs[0].Origin
			q.Destination = legs[len(legs)-1].Destination
			q.DepartureDate = legs[0].Date
		}
	}

	if err := q.Validate(); err != nil {
		return SearchQuery{}, err
	}
	return q, nil
}

func (q SearchQuery) Validate() error {
	if !q.Cabin.Valid() {
		return ErrInvalidCabin
	}
	if err := q.validatePassengers(); err != nil {
		return err
	}

	switch q.TripType {
	case TripOneWay:
		if q.ReturnDate != "" {
			return ErrUnexpectedReturnDate
		}
		return validateLeg(Leg{Origin: q.Origin, Destination: q.Destination, Date: q.DepartureDate})
	case TripRoundTrip:
		if q.ReturnDate == "" {
			return ErrMissingReturnDate
		}
		if err := validateLeg(Leg{Origin: q.Origin, Destination: q.Destination, Date: q.DepartureDate}); err != nil {
			return err
		}
		ret, err := time.Parse(DateLayout, q.ReturnDate)
		if err != nil {
			return ErrInvalidDate
		}
		dep, _ := time.Parse(DateLayout, q.DepartureDate)
		if ret.Before(dep) {
			return ErrReturnBeforeDeparture
		}
		return nil
	case TripMultiCity:
		if len(q.Legs) < 2 || len(q.Legs) > maxMultiCityLegs {
			return ErrInvalidLegCount
		}
		var prev time.Time
		for i, l := range q.Legs {
			if err := validateLeg(l); err != nil {
				return err
			}
			d, _ := time.Parse(DateLayout, l.Date)
			if i > 0 && d.Before(prev) {
				return ErrLegsOutOfOrder
			}
			prev = d
		}
		return nil
	default:
		return ErrInvalidTripType
	}
}

func (q SearchQuery) validatePassengers() error {
	p := q.Passengers
	if p.Adults < 0 || p.Children < 0 || p.Infants < 0 {
		return ErrInvalidPassengers
	}
	if p.Adults == 0 {
		return ErrMissingAdult
	}
	if p.Infants > p.Adults {
		return ErrTooManyInfants
	}
	if p.Seats() > maxSeatedPassengers {
		return ErrTooManyPassengers
	}
	return nil
}

func validateLeg(l Leg) error {
	if l.Origin == "" {
		return ErrMissingOrigin
	}
	if l.Destination == "" {
		return ErrMissingDestination
	}
	if l.Date == "" {
		return ErrMissingDepartureDate
	}
	if !validCode(l.Origin) || !validCode(l.Destination) {
		return ErrInvalidAirportCode
	}
	if l.Origin == l.Destination {
		return ErrSameOriginDestination
	}
	if _, err := time.Parse(DateLayout, l.Date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Slices returns the ordered legs the query asks suppliers for. The returned
// slice is a fresh copy.
func (q SearchQuery) Slices() []Leg {
	switch q.TripType {
	case TripMultiCity:
		out := make([]Leg, len(q.Legs))
		copy(out, q.Legs)
		return out
	case TripRoundTrip:
		return []Leg{
			{Origin: q.Origin, Destination: q.Destination, Date: q.DepartureDate},
			{Origin: q.Destination, Destination: q.Origin, Date: q.ReturnDate},
		}
	default:
		return []Leg{{Origin: q.Origin, Destination: q.Destination, Date: q.DepartureDate}}
	}
}

// Fingerprint is the hex SHA-256 of the query's canonical form. Two queries
// that differ only in letter case or whitespace share a fingerprint.
func (q SearchQuery) Fingerprint() string {
	type leg struct {
		O string `json:"o"`
		D string `json:"d"`
		T string `json:"t"`
	}
	keyData := struct {
		Trip     string `json:"trip"`
		Cabin    string `json:"cabin"`
		Adults   int    `json:"adt"`
		Children int    `json:"chd"`
		Infants  int    `json:"inf"`
		Legs     []leg  `json:"legs"`
	}{
		Trip:     string(q.TripType),
		Cabin:    string(q.Cabin),
		Adults:   q.Passengers.Adults,
		Children: q.Passengers.Children,
		Infants:  q.Passengers.Infants,
	}
	for _, l := range q.Slices() {
		keyData.Legs = append(keyData.Legs, leg{
			O: strings.ToLower(l.Origin),
			D: strings.ToLower(l.Destination),
			T: l.Date,
		})
	}

	data, _ := json.Marshal(keyData)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
