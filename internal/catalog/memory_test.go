package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFlights() []Flight {
	damascus := time.FixedZone("+03", 3*3600)
	return []Flight{
		{ID: "fl-2", FlightNumber: "RB501", Carrier: "RB", Origin: "DAM", Destination: "MHD", DepartureTime: time.Date(2025, 12, 18, 14, 0, 0, 0, damascus), ArrivalTime: time.Date(2025, 12, 18, 17, 30, 0, 0, damascus), Cabin: "economy", Fare: 21000, Currency: "USD", SeatsAvailable: 4},
		{ID: "fl-1", FlightNumber: "RB503", Carrier: "RB", Origin: "dam", Destination: "mhd", DepartureTime: time.Date(2025, 12, 18, 6, 0, 0, 0, damascus), ArrivalTime: time.Date(2025, 12, 18, 9, 30, 0, 0, damascus), Cabin: "economy", Fare: 19000, Currency: "USD", SeatsAvailable: 1},
		// 00:30 on the 19th local time, 21:30 UTC on the 18th.
		{ID: "fl-3", FlightNumber: "RB505", Carrier: "RB", Origin: "DAM", Destination: "MHD", DepartureTime: time.Date(2025, 12, 19, 0, 30, 0, 0, damascus), ArrivalTime: time.Date(2025, 12, 19, 4, 0, 0, 0, damascus), Cabin: "economy", Fare: 15000, Currency: "USD", SeatsAvailable: 9},
		{ID: "fl-4", FlightNumber: "RB507", Carrier: "RB", Origin: "DAM", Destination: "MHD", DepartureTime: time.Date(2025, 12, 18, 10, 0, 0, 0, damascus), ArrivalTime: time.Date(2025, 12, 18, 13, 30, 0, 0, damascus), Cabin: "business", Fare: 90000, Currency: "USD", SeatsAvailable: 2},
	}
}

func TestMemoryStore_FindFlights(t *testing.T) {
	s := NewMemoryStore(sampleFlights())
	ctx := context.Background()

	got, err := s.FindFlights(ctx, Criteria{Origin: "DAM", Destination: "MHD", Date: "2025-12-18", Cabin: "economy", Seats: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fl-1", got[0].ID)
	assert.Equal(t, "fl-2", got[1].ID)

	got, err = s.FindFlights(ctx, Criteria{Origin: "DAM", Destination: "MHD", Date: "2025-12-18", Cabin: "economy", Seats: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fl-2", got[0].ID)

	got, err = s.FindFlights(ctx, Criteria{Origin: "DAM", Destination: "MHD", Date: "2025-12-19", Seats: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fl-3", got[0].ID)

	got, err = s.FindFlights(ctx, Criteria{Origin: "MHD", Destination: "DAM", Date: "2025-12-18", Seats: 1})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.FindFlights(ctx, Criteria{Origin: "DAM", Destination: "MHD", Date: "bad"})
	assert.Error(t, err)
}

func TestMemoryStore_GetFlight(t *testing.T) {
	s := NewMemoryStore(sampleFlights())

	f, err := s.GetFlight(context.Background(), "fl-4")
	require.NoError(t, err)
	assert.Equal(t, "business", f.Cabin)

	_, err = s.GetFlight(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFlightNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.GetFlight(ctx, "fl-4")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"fl-9","flight_number":"GA410","carrier":"GA","origin":"CGK","destination":"DPS",
		 "departure_time":"2025-12-18T08:00:00+07:00","arrival_time":"2025-12-18T10:50:00+08:00",
		 "cabin":"economy","fare":1250000,"currency":"IDR","seats_available":12}
	]`), 0o600))

	flights, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, int64(1250000), flights[0].Fare)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
