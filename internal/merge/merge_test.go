package merge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/pkg/currency"
)

var base = time.Date(2025, 12, 18, 3, 0, 0, 0, time.UTC)

func offer(supplier, ref, flight string, dep time.Duration, dur time.Duration, amount int64, cur string) models.Offer {
	start := base.Add(dep)
	return models.Offer{
		SupplierCode:      supplier,
		SupplierReference: ref,
		Price:             models.Price{Amount: amount, Currency: cur},
		Segments: []models.Segment{{
			FlightNumber:     flight,
			MarketingCarrier: flight[:2],
			Origin:           "DAM",
			Destination:      "MHD",
			DepartureTime:    start,
			ArrivalTime:      start.Add(dur),
		}},
	}
}

func refs(offers []models.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.ID()
	}
	return out
}

func TestMerge_SortsByPriceWithPriorityTieBreak(t *testing.T) {
	m := New(DefaultOptions(), nil, nil)

	set := m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{
			offer("catalog", "a", "RB501", 0, 3*time.Hour, 30000, "USD"),
			offer("catalog", "b", "RB503", time.Hour, 3*time.Hour, 20000, "USD"),
		}},
		{Supplier: "duffel", Offers: []models.Offer{
			offer("duffel", "c", "W5115", 2*time.Hour, 4*time.Hour, 20000, "USD"),
		}},
	}, nil)

	assert.Equal(t, []string{"catalog:b", "duffel:c", "catalog:a"}, refs(set.Offers))
	assert.Equal(t, []string{"catalog", "duffel"}, set.Contributing)
	assert.Equal(t, 3, set.TotalCount)
	assert.Empty(t, set.Warnings)
	assert.Equal(t, models.SortPrice, set.SortKey)
}

func TestMerge_DedupeKeepsCheaper(t *testing.T) {
	m := New(DefaultOptions(), nil, nil)

	set := m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{offer("catalog", "a", "RB501", 0, 3*time.Hour, 25000, "USD")}},
		{Supplier: "duffel", Offers: []models.Offer{offer("duffel", "x", "RB 0501", 0, 3*time.Hour, 21000, "USD")}},
		{Supplier: "amadeus", Offers: []models.Offer{offer("amadeus", "y", "RB501", 0, 3*time.Hour, 21000, "USD")}},
	}, nil)

	require.Len(t, set.Offers, 1)
	assert.Equal(t, "duffel:x", set.Offers[0].ID(), "equal prices keep the higher-priority supplier")
	assert.Equal(t, []string{"catalog", "duffel", "amadeus"}, set.Contributing)
}

func TestMerge_IdentityDuplicatesAlwaysRemoved(t *testing.T) {
	opts := DefaultOptions()
	opts.Dedupe = false
	m := New(opts, nil, nil)

	o := offer("catalog", "a", "RB501", 0, 3*time.Hour, 25000, "USD")
	twin := offer("duffel", "x", "RB501", 0, 3*time.Hour, 21000, "USD")
	set := m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{o, o}},
		{Supplier: "duffel", Offers: []models.Offer{twin}},
	}, nil)

	assert.Equal(t, []string{"duffel:x", "catalog:a"}, refs(set.Offers))
}

func TestMerge_DedupeAcrossCurrencies(t *testing.T) {
	conv := currency.NewStaticConverter("USD", map[string]float64{"EUR": 0.5})
	m := New(DefaultOptions(), conv, nil)

	set := m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{offer("catalog", "a", "RB501", 0, 3*time.Hour, 20000, "USD")}},
		{Supplier: "amadeus", Offers: []models.Offer{offer("amadeus", "b", "RB501", 0, 3*time.Hour, 9000, "EUR")}},
	}, nil)
	require.Len(t, set.Offers, 1)
	assert.Equal(t, "amadeus:b", set.Offers[0].ID())

	// Without rates the earlier offer is kept.
	m = New(DefaultOptions(), nil, nil)
	set = m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{offer("catalog", "a", "RB501", 0, 3*time.Hour, 20000, "USD")}},
		{Supplier: "amadeus", Offers: []models.Offer{offer("amadeus", "b", "RB501", 0, 3*time.Hour, 9000, "EUR")}},
	}, nil)
	require.Len(t, set.Offers, 1)
	assert.Equal(t, "catalog:a", set.Offers[0].ID())
}

func TestMerge_MixedCurrencyConverted(t *testing.T) {
	conv := currency.NewStaticConverter("USD", map[string]float64{"EUR": 0.5})
	m := New(DefaultOptions(), conv, nil)

	set := m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{offer("catalog", "a", "RB501", 0, 3*time.Hour, 20000, "USD")}},
		{Supplier: "amadeus", Offers: []models.Offer{offer("amadeus", "b", "W5115", time.Hour, 3*time.Hour, 9000, "EUR")}},
	}, nil)

	assert.Equal(t, []string{"amadeus:b", "catalog:a"}, refs(set.Offers))
	assert.False(t, set.HasWarning(models.WarningMixedCurrency))
}

func TestMerge_MixedCurrencyGrouped(t *testing.T) {
	m := New(DefaultOptions(), nil, nil)

	set := m.Merge([]models.SupplierOffers{
		{Supplier: "catalog", Offers: []models.Offer{
			offer("catalog", "a", "RB501", 0, 3*time.Hour, 20000, "USD"),
			offer("catalog", "b", "RB503", time.Hour, 3*time.Hour, 15000, "USD"),
		}},
		{Supplier: "amadeus", Offers: []models.Offer{
			offer("amadeus", "c", "W5115", time.Hour, 3*time.Hour, 30000, "EUR"),
			offer("amadeus", "d", "W5117", 2*time.Hour, 3*time.Hour, 9000, "EUR"),
		}},
	}, nil)

	assert.Equal(t, []string{"amadeus:d", "amadeus:c", "catalog:b", "catalog:a"}, refs(set.Offers))
	assert.True(t, set.HasWarning(models.WarningMixedCurrency))
}

func TestMerge_SortKeys(t *testing.T) {
	contribs := []models.SupplierOffers{{Supplier: "catalog", Offers: []models.Offer{
		offer("catalog", "slow", "RB501", 0, 5*time.Hour, 10000, "USD"),
		offer("catalog", "late", "RB503", 6*time.Hour, 2*time.Hour, 30000, "USD"),
		offer("catalog", "mid", "RB505", 3*time.Hour, 3*time.Hour, 20000, "USD"),
	}}}

	tests := []struct {
		key  models.SortKey
		dir  models.SortDirection
		want []string
	}{
		{models.SortPrice, models.SortAsc, []string{"catalog:slow", "catalog:mid", "catalog:late"}},
		{models.SortPrice, models.SortDesc, []string{"catalog:late", "catalog:mid", "catalog:slow"}},
		{models.SortDuration, models.SortAsc, []string{"catalog:late", "catalog:mid", "catalog:slow"}},
		{models.SortDeparture, models.SortDesc, []string{"catalog:late", "catalog:mid", "catalog:slow"}},
		{models.SortBestValue, models.SortAsc, []string{"catalog:slow", "catalog:mid", "catalog:late"}},
		{models.SortBestValue, models.SortDesc, []string{"catalog:late", "catalog:mid", "catalog:slow"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.key, tt.dir), func(t *testing.T) {
			m := New(Options{SortKey: tt.key, Direction: tt.dir}, nil, nil)
			set := m.Merge(contribs, nil)
			assert.Equal(t, tt.want, refs(set.Offers))
			assert.Equal(t, tt.dir, set.Direction)
		})
	}
}

func TestSort_CapsAfterReordering(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxResults = 2
	m := New(opts, nil, nil)

	var offers []models.Offer
	for i := 0; i < 5; i++ {
		offers = append(offers, offer("catalog", fmt.Sprint(i), fmt.Sprintf("RB%d", 500+i), time.Duration(i)*time.Hour, time.Duration(5-i)*time.Hour, int64(1000*(i+1)), "USD"))
	}
	set := m.Merge([]models.SupplierOffers{{Supplier: "catalog", Offers: offers}}, nil)
	require.Len(t, set.Offers, 5, "merged sets keep every offer")
	assert.Equal(t, 5, set.TotalCount)

	byPrice := m.Sort(set, "", "")
	assert.Equal(t, []string{"catalog:0", "catalog:1"}, refs(byPrice.Offers))
	assert.Equal(t, 5, byPrice.TotalCount)

	// The shortest itineraries are the most expensive ones.
	byDuration := m.Sort(set, models.SortDuration, models.SortAsc)
	assert.Equal(t, []string{"catalog:4", "catalog:3"}, refs(byDuration.Offers))
	assert.Equal(t, 5, byDuration.TotalCount)
	assert.Len(t, set.Offers, 5)
}

func TestMerge_EmptyContributionsStillCount(t *testing.T) {
	m := New(DefaultOptions(), nil, nil)
	failed := []models.SupplierFailure{{Supplier: "amadeus", Kind: models.KindSupplierTimeout}}

	set := m.Merge([]models.SupplierOffers{{Supplier: "catalog"}}, failed)

	assert.Empty(t, set.Offers)
	assert.Equal(t, []string{"catalog"}, set.Contributing)
	assert.Equal(t, failed, set.Failed)
}

func TestSort_LeavesInputUntouched(t *testing.T) {
	m := New(DefaultOptions(), nil, nil)
	set := m.Merge([]models.SupplierOffers{{Supplier: "catalog", Offers: []models.Offer{
		offer("catalog", "a", "RB501", 0, 5*time.Hour, 10000, "USD"),
		offer("catalog", "b", "RB503", time.Hour, 2*time.Hour, 30000, "USD"),
	}}}, nil)

	sorted := m.Sort(set, models.SortDuration, "")

	assert.Equal(t, []string{"catalog:b", "catalog:a"}, refs(sorted.Offers))
	assert.Equal(t, models.SortDuration, sorted.SortKey)
	assert.Equal(t, models.SortAsc, sorted.Direction)
	assert.Equal(t, []string{"catalog:a", "catalog:b"}, refs(set.Offers))
	assert.Equal(t, models.SortPrice, set.SortKey)
}
