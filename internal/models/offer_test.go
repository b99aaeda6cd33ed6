package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func connectingOffer() Offer {
	return Offer{
		SupplierCode:      "amadeus",
		SupplierReference: "abc-1",
		Segments: []Segment{
			{FlightNumber: "123", MarketingCarrier: "QR", Origin: "DAM", Destination: "DOH", DepartureTime: at("2025-12-18T08:00:00+03:00"), ArrivalTime: at("2025-12-18T10:30:00+03:00"), Leg: 0},
			{FlightNumber: "QR 0456", MarketingCarrier: "QR", Origin: "DOH", Destination: "MHD", DepartureTime: at("2025-12-18T12:00:00+03:00"), ArrivalTime: at("2025-12-18T15:30:00+03:30"), Leg: 0},
			{FlightNumber: "457", MarketingCarrier: "QR", Origin: "MHD", Destination: "DAM", DepartureTime: at("2025-12-24T09:00:00+03:30"), ArrivalTime: at("2025-12-24T11:00:00+03:00"), Leg: 1},
		},
		Price: Price{Amount: 45000, Currency: "USD"},
	}
}

func TestOffer_Validate(t *testing.T) {
	o := connectingOffer()
	require.NoError(t, o.Validate())

	broken := []func(*Offer){
		func(o *Offer) { o.SupplierReference = "" },
		func(o *Offer) { o.Segments = nil },
		func(o *Offer) { o.Price.Currency = "" },
		func(o *Offer) { o.Price.Currency = "usd" },
		func(o *Offer) { o.Price.Amount = -1 },
		func(o *Offer) { o.Segments[1].FlightNumber = "" },
		func(o *Offer) { o.Segments[0].Destination = "" },
		func(o *Offer) { o.Segments[2].ArrivalTime = time.Time{} },
		func(o *Offer) { o.Segments[0].ArrivalTime = o.Segments[0].DepartureTime.Add(-time.Minute) },
		func(o *Offer) { o.Segments[2].Leg = 0; o.Segments[1].Leg = 1 },
	}
	for i, mutate := range broken {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			o := connectingOffer()
			o.Segments = append([]Segment(nil), o.Segments...)
			mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestOffer_Signature(t *testing.T) {
	a := connectingOffer()
	b := connectingOffer()
	b.SupplierCode = "duffel"
	b.SupplierReference = "off_1"
	b.Segments = append([]Segment(nil), b.Segments...)
	b.Segments[0].FlightNumber = "QR123"
	b.Segments[0].DepartureTime = b.Segments[0].DepartureTime.UTC()

	assert.Equal(t, a.Signature(), b.Signature())

	b.Segments[0].DepartureTime = b.Segments[0].DepartureTime.Add(time.Hour)
	assert.NotEqual(t, a.Signature(), b.Signature())
}

func TestOffer_DurationAndStops(t *testing.T) {
	o := connectingOffer()
	// Outbound 08:00+03 -> 15:30+03:30 is 7h, return 09:00+03:30 -> 11:00+03 is 2h30.
	assert.Equal(t, 9*time.Hour+30*time.Minute, o.Duration())
	assert.Equal(t, 1, o.Stops())
	assert.Equal(t, at("2025-12-18T08:00:00+03:00"), o.Departure())
}

func TestNormalizeFlightNumber(t *testing.T) {
	assert.Equal(t, "QR123", NormalizeFlightNumber("qr", "0123"))
	assert.Equal(t, "QR123", NormalizeFlightNumber("QR", "QR-123"))
	assert.Equal(t, "GA410", NormalizeFlightNumber("GA", "GA 410"))
}

func TestPrice_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Price{Amount: 123450, Currency: "USD"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":123450,"currency":"USD","formatted":"USD 1,234.50"}`, string(data))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindInvalidQuery, KindOf(ErrMissingOrigin))
	assert.Equal(t, KindSupplierTimeout, KindOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("dispatch: %w", WrapError(KindSupplierUnavailable, "duffel", errors.New("503")))
	assert.Equal(t, KindSupplierUnavailable, KindOf(wrapped))
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsTransient(NewError(KindSupplierRejected, "duffel", "bad request")))
	assert.False(t, IsTransient(NewError(KindNormalization, "duffel", "")))
	assert.Equal(t, "duffel: supplier_unavailable: 503", wrapped.(interface{ Unwrap() error }).Unwrap().Error())
}
