package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/airsearch/internal/models"
)

const duffelOfferJSON = `{
  "id": "off_0001",
  "total_amount": "212.40",
  "total_currency": "USD",
  "slices": [{
    "segments": [{
      "origin": {"iata_code": "DAM"},
      "destination": {"iata_code": "MHD"},
      "departing_at": "2025-12-18T08:15:00",
      "arriving_at": "2025-12-18T12:00:00",
      "marketing_carrier": {"iata_code": "RB"},
      "marketing_carrier_flight_number": "0501",
      "operating_carrier": {"iata_code": "RB"},
      "passengers": [{"cabin_class": "economy"}]
    }]
  }]
}`

func newTestDuffel(t *testing.T, h http.HandlerFunc) *Duffel {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	d, err := NewDuffel("duffel", DuffelConfig{BaseURL: ts.URL, Token: "duffel_test"}, ts.Client(), nil)
	require.NoError(t, err)
	return d
}

func TestDuffel_Search(t *testing.T) {
	var got struct {
		Data duffelOfferRequest `json:"data"`
	}
	d := newTestDuffel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, duffelOfferRequestPath, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("return_offers"))
		assert.Equal(t, "Bearer duffel_test", r.Header.Get("Authorization"))
		assert.Equal(t, duffelVersion, r.Header.Get("Duffel-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"data":{"offers":[`+duffelOfferJSON+`]}}`)
	})

	q := mustQuery(t, models.SearchQuery{
		Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18",
		Passengers: models.Passengers{Adults: 1, Children: 1},
	})
	offers, err := d.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	o := offers[0]
	assert.Equal(t, "off_0001", o.SupplierReference)
	assert.Equal(t, models.Price{Amount: 21240, Currency: "USD"}, o.Price)
	assert.Equal(t, "RB501", o.Segments[0].FlightNumber)
	assert.Equal(t, 2, o.SeatsAvailable)

	require.Len(t, got.Data.Passengers, 2)
	assert.Equal(t, "child", got.Data.Passengers[1].Type)
	assert.Equal(t, "economy", got.Data.CabinClass)
	assert.Equal(t, []duffelSlice{{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18"}}, got.Data.Slices)
}

func TestDuffel_SearchMalformedOffer(t *testing.T) {
	d := newTestDuffel(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"offers":[{"id":"off_1","total_amount":"abc","total_currency":"USD","slices":[]}]}}`)
	})
	q := mustQuery(t, models.SearchQuery{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18"})

	_, err := d.Search(context.Background(), q)
	assert.Equal(t, models.KindNormalization, models.KindOf(err))
	assert.False(t, models.IsTransient(err))
}

func TestDuffel_OfferDetailsAndPrice(t *testing.T) {
	d := newTestDuffel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != duffelOfferPath+"off_0001" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `{"data":`+duffelOfferJSON+`}`)
	})
	ctx := context.Background()

	offer, err := d.GetOfferDetails(ctx, "off_0001")
	require.NoError(t, err)
	assert.Equal(t, "DAM", offer.Segments[0].Origin)

	price, err := d.PriceOffer(ctx, "off_0001")
	require.NoError(t, err)
	assert.Equal(t, models.Price{Amount: 21240, Currency: "USD"}, price)

	_, err = d.PriceOffer(ctx, "off_gone")
	assert.Equal(t, models.KindOfferNotFound, models.KindOf(err))
}

func TestDuffel_RejectedRequest(t *testing.T) {
	d := newTestDuffel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":[{"code":"validation_error"}]}`)
	})
	q := mustQuery(t, models.SearchQuery{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18"})

	_, err := d.Search(context.Background(), q)
	assert.Equal(t, models.KindSupplierRejected, models.KindOf(err))
	assert.Contains(t, err.Error(), "validation_error")
}
