// Package catalog stores the internal flight inventory served by the local
// supplier.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrFlightNotFound = errors.New("catalog: flight not found")

// Flight is one scheduled, directly bookable flight. Fare is per seated
// passenger in the currency's minor unit.
type Flight struct {
	ID               string    `json:"id" db:"id"`
	FlightNumber     string    `json:"flight_number" db:"flight_number"`
	Carrier          string    `json:"carrier" db:"carrier"`
	OperatingCarrier string    `json:"operating_carrier,omitempty" db:"operating_carrier"`
	Origin           string    `json:"origin" db:"origin"`
	Destination      string    `json:"destination" db:"destination"`
	DepartureTime    time.Time `json:"departure_time" db:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time" db:"arrival_time"`
	Cabin            string    `json:"cabin" db:"cabin"`
	Fare             int64     `json:"fare" db:"fare"`
	Currency         string    `json:"currency" db:"currency"`
	SeatsAvailable   int       `json:"seats_available" db:"seats_available"`
}

type Criteria struct {
	Origin      string
	Destination string
	// Date is YYYY-MM-DD in the origin airport's local time.
	Date  string
	Cabin string
	Seats int
}

type Store interface {
	FindFlights(ctx context.Context, c Criteria) ([]Flight, error)
	GetFlight(ctx context.Context, id string) (Flight, error)
	Close() error
}

// LoadSeedFile reads a JSON array of flights.
func LoadSeedFile(path string) ([]Flight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read seed: %w", err)
	}
	var flights []Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, fmt.Errorf("catalog: decode seed %s: %w", path, err)
	}
	return flights, nil
}
