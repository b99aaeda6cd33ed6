package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dharmasatrya/airsearch/pkg/currency"
)

// Price is an amount in the currency's minor unit.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (p Price) String() string {
	return currency.Format(p.Amount, p.Currency)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Formatted string `json:"formatted"`
	}{p.Amount, p.Currency, p.String()})
}

type Segment struct {
	FlightNumber     string    `json:"flight_number"`
	MarketingCarrier string    `json:"marketing_carrier"`
	OperatingCarrier string    `json:"operating_carrier"`
	Origin           string    `json:"origin"`
	Destination      string    `json:"destination"`
	DepartureTime    time.Time `json:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time"`
	Cabin            Cabin     `json:"cabin"`
	// Leg is the index of the query slice this segment belongs to.
	Leg int `json:"leg"`
}

// Offer is one bookable itinerary from one supplier.
type Offer struct {
	SupplierCode      string          `json:"supplier_code"`
	SupplierReference string          `json:"supplier_reference"`
	Segments          []Segment       `json:"segments"`
	Price             Price           `json:"price"`
	SeatsAvailable    int             `json:"seats_available,omitempty"`
	BestValueScore    float64         `json:"best_value_score,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
}

func (o Offer) ID() string {
	return o.SupplierCode + ":" + o.SupplierReference
}

// Validate reports whether the offer is complete enough to leave a client.
func (o Offer) Validate() error {
	if o.SupplierCode == "" || o.SupplierReference == "" {
		return errors.New("offer identity is incomplete")
	}
	if len(o.Segments) == 0 {
		return errors.New("offer has no segments")
	}
	if !currency.Valid(o.Price.Currency) {
		return fmt.Errorf("offer price currency %q is invalid", o.Price.Currency)
	}
	if o.Price.Amount < 0 {
		return fmt.Errorf("offer price %d is negative", o.Price.Amount)
	}
	for i, s := range o.Segments {
		if s.FlightNumber == "" || s.MarketingCarrier == "" {
			return fmt.Errorf("segment %d has no flight number", i)
		}
		if s.Origin == "" || s.Destination == "" {
			return fmt.Errorf("segment %d has no routing", i)
		}
		if s.DepartureTime.IsZero() || s.ArrivalTime.IsZero() {
			return fmt.Errorf("segment %d has no schedule", i)
		}
		if s.ArrivalTime.Before(s.DepartureTime) {
			return fmt.Errorf("segment %d arrives before it departs", i)
		}
		if i > 0 && s.Leg < o.Segments[i-1].Leg {
			return fmt.Errorf("segment %d is out of leg order", i)
		}
	}
	return nil
}

// Signature identifies the itinerary independently of the supplier selling it.
func (o Offer) Signature() string {
	parts := make([]string, len(o.Segments))
	for i, s := range o.Segments {
		parts[i] = NormalizeFlightNumber(s.MarketingCarrier, s.FlightNumber) + "@" +
			s.DepartureTime.UTC().Format(time.RFC3339) + ":" +
			strings.ToUpper(s.Origin) + "-" + strings.ToUpper(s.Destination)
	}
	return strings.Join(parts, "|")
}

// Duration is the summed door-to-door time of every leg, layovers included.
func (o Offer) Duration() time.Duration {
	var total time.Duration
	for start := 0; start < len(o.Segments); {
		end := start
		for end+1 < len(o.Segments) && o.Segments[end+1].Leg == o.Segments[start].Leg {
			end++
		}
		total += o.Segments[end].ArrivalTime.Sub(o.Segments[start].DepartureTime)
		start = end + 1
	}
	return total
}

func (o Offer) Stops() int {
	legs := 0
	for i, s := range o.Segments {
		if i == 0 || s.Leg != o.Segments[i-1].Leg {
			legs++
		}
	}
	return len(o.Segments) - legs
}

func (o Offer) Departure() time.Time {
	if len(o.Segments) == 0 {
		return time.Time{}
	}
	return o.Segments[0].DepartureTime
}

// NormalizeFlightNumber returns the carrier-prefixed flight number without
// spaces, dashes or leading zeros, e.g. "QR 0123" -> "QR123".
func NormalizeFlightNumber(carrier, number string) string {
	n := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(number))
	c := strings.ToUpper(strings.TrimSpace(carrier))
	if c != "" && strings.HasPrefix(n, c) {
		n = n[len(c):]
	}
	n = strings.TrimLeft(n, "0")
	if n == "" {
		n = "0"
	}
	return c + n
}
