package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/airsearch/internal/catalog"
	"github.com/dharmasatrya/airsearch/internal/models"
)

func testCatalog() *catalog.MemoryStore {
	plus3 := time.FixedZone("+03", 3*3600)
	plus330 := time.FixedZone("+0330", 3*3600+1800)
	return catalog.NewMemoryStore([]catalog.Flight{
		{ID: "fl-1", FlightNumber: "RB503", Carrier: "RB", Origin: "DAM", Destination: "MHD", DepartureTime: time.Date(2025, 12, 18, 6, 0, 0, 0, plus3), ArrivalTime: time.Date(2025, 12, 18, 10, 0, 0, 0, plus330), Cabin: "economy", Fare: 19000, Currency: "USD", SeatsAvailable: 3},
		{ID: "fl-2", FlightNumber: "W5115", Carrier: "W5", Origin: "DAM", Destination: "MHD", DepartureTime: time.Date(2025, 12, 18, 14, 0, 0, 0, plus3), ArrivalTime: time.Date(2025, 12, 18, 18, 0, 0, 0, plus330), Cabin: "economy", Fare: 21000, Currency: "USD", SeatsAvailable: 1},
		{ID: "fl-3", FlightNumber: "RB504", Carrier: "RB", Origin: "MHD", Destination: "DAM", DepartureTime: time.Date(2025, 12, 22, 11, 0, 0, 0, plus330), ArrivalTime: time.Date(2025, 12, 22, 13, 30, 0, 0, plus3), Cabin: "economy", Fare: 18000, Currency: "USD", SeatsAvailable: 5},
	})
}

func mustQuery(t *testing.T, q models.SearchQuery) models.SearchQuery {
	t.Helper()
	out, err := models.NewSearchQuery(q)
	require.NoError(t, err)
	return out
}

func TestLocal_SearchOneWay(t *testing.T) {
	l := NewLocal("catalog", testCatalog(), nil)
	q := mustQuery(t, models.SearchQuery{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18"})

	offers, err := l.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	first := offers[0]
	assert.Equal(t, "catalog", first.SupplierCode)
	assert.Equal(t, "fl-1/1", first.SupplierReference)
	assert.Equal(t, models.Price{Amount: 19000, Currency: "USD"}, first.Price)
	assert.Equal(t, 3, first.SeatsAvailable)
	require.Len(t, first.Segments, 1)
	assert.Equal(t, "RB", first.Segments[0].OperatingCarrier)
	assert.Equal(t, 3*time.Hour+30*time.Minute, first.Duration())
}

func TestLocal_SearchPricesEverySeat(t *testing.T) {
	l := NewLocal("catalog", testCatalog(), nil)
	q := mustQuery(t, models.SearchQuery{
		Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18",
		Passengers: models.Passengers{Adults: 2, Infants: 1},
	})

	offers, err := l.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, offers, 1, "fl-2 has a single seat left")
	assert.Equal(t, int64(38000), offers[0].Price.Amount)
	assert.Equal(t, "fl-1/2", offers[0].SupplierReference)
}

func TestLocal_SearchRoundTrip(t *testing.T) {
	l := NewLocal("catalog", testCatalog(), nil)
	q := mustQuery(t, models.SearchQuery{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18", ReturnDate: "2025-12-22"})

	offers, err := l.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "fl-1~fl-3/1", offers[0].SupplierReference)
	assert.Equal(t, int64(37000), offers[0].Price.Amount)
	assert.Equal(t, 1, offers[0].Segments[1].Leg)
	assert.Equal(t, 0, offers[0].Stops())
}

func TestLocal_SearchNoInventory(t *testing.T) {
	l := NewLocal("catalog", testCatalog(), nil)
	q := mustQuery(t, models.SearchQuery{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18", ReturnDate: "2025-12-25"})

	offers, err := l.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestLocal_SearchCancelled(t *testing.T) {
	l := NewLocal("catalog", testCatalog(), nil)
	q := mustQuery(t, models.SearchQuery{Origin: "DAM", Destination: "MHD", DepartureDate: "2025-12-18"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := l.Search(ctx, q)
	assert.Equal(t, models.KindSupplierTimeout, models.KindOf(err))
}

func TestLocal_OfferDetailsAndPrice(t *testing.T) {
	l := NewLocal("catalog", testCatalog(), nil)
	ctx := context.Background()

	offer, err := l.GetOfferDetails(ctx, "fl-1~fl-3/2")
	require.NoError(t, err)
	assert.Len(t, offer.Segments, 2)
	assert.Equal(t, int64(74000), offer.Price.Amount)

	price, err := l.PriceOffer(ctx, "fl-1/2")
	require.NoError(t, err)
	assert.Equal(t, models.Price{Amount: 38000, Currency: "USD"}, price)

	_, err = l.PriceOffer(ctx, "fl-2/2")
	assert.Equal(t, models.KindOfferNotFound, models.KindOf(err))

	_, err = l.GetOfferDetails(ctx, "fl-9/1")
	assert.Equal(t, models.KindOfferNotFound, models.KindOf(err))

	_, err = l.GetOfferDetails(ctx, "garbage")
	assert.Equal(t, models.KindOfferNotFound, models.KindOf(err))
}

func TestCombineStopsAtLimit(t *testing.T) {
	legs := [][]catalog.Flight{
		{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}},
		{{ID: "b1"}, {ID: "b2"}},
	}
	var got []string
	combine(legs, 4, func(c []catalog.Flight) {
		got = append(got, c[0].ID+c[1].ID)
	})
	assert.Equal(t, []string{"a1b1", "a1b2", "a2b1", "a2b2"}, got)

	got = nil
	combine(legs, 100, func(c []catalog.Flight) {
		got = append(got, c[0].ID+c[1].ID)
	})
	assert.Len(t, got, 6)
}
