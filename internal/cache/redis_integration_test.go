//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/dharmasatrya/airsearch/internal/models"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	store, err := NewRedisStore(RedisConfig{Addr: opts.Addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	dep := time.Date(2025, 12, 18, 3, 0, 0, 0, time.UTC)
	want := &models.MergedResultSet{
		Fingerprint:  "fp",
		SortKey:      models.SortPrice,
		Direction:    models.SortAsc,
		Contributing: []string{"catalog", "duffel"},
		Failed:       []models.SupplierFailure{{Supplier: "amadeus", Kind: models.KindSupplierTimeout}},
		TotalCount:   1,
		Offers: []models.Offer{{
			SupplierCode:      "duffel",
			SupplierReference: "off_1",
			Price:             models.Price{Amount: 21240, Currency: "USD"},
			Segments: []models.Segment{{
				FlightNumber: "RB501", MarketingCarrier: "RB", OperatingCarrier: "RB",
				Origin: "DAM", Destination: "MHD",
				DepartureTime: dep, ArrivalTime: dep.Add(3 * time.Hour),
				Cabin: models.CabinEconomy,
			}},
		}},
	}

	require.NoError(t, store.Set(ctx, "airsearch:hybrid:fp", want, time.Minute))

	got, storedAt, found, err := store.Get(ctx, "airsearch:hybrid:fp")
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, time.Now(), storedAt, 5*time.Second)
	assert.Equal(t, want.Contributing, got.Contributing)
	assert.Equal(t, want.Failed, got.Failed)
	require.Len(t, got.Offers, 1)
	assert.Equal(t, want.Offers[0].Signature(), got.Offers[0].Signature())
	assert.Equal(t, want.Offers[0].Price, got.Offers[0].Price)

	require.NoError(t, store.Delete(ctx, "airsearch:hybrid:fp"))
	_, _, found, err = store.Get(ctx, "airsearch:hybrid:fp")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_StoredAtGuardsTTL(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", &models.MergedResultSet{Contributing: []string{"catalog"}}, time.Minute))
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, _, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_WithRedisStore(t *testing.T) {
	c := New(newRedisStore(t), DefaultConfig(), nil, nil)
	ctx := context.Background()
	calls := 0
	compute := func(ctx context.Context) (*models.MergedResultSet, error) {
		calls++
		return &models.MergedResultSet{Fingerprint: "fp", Contributing: []string{"catalog"}}, nil
	}

	_, hit, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}
