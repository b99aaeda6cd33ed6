package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/airsearch/internal/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)}
}

func sampleSet(fp string) *models.MergedResultSet {
	return &models.MergedResultSet{
		Fingerprint:  fp,
		Contributing: []string{"catalog"},
		Offers: []models.Offer{{
			SupplierCode:      "catalog",
			SupplierReference: "fl-1/1",
			Price:             models.Price{Amount: 19000, Currency: "USD"},
		}},
		TotalCount: 1,
	}
}

func TestMemoryStore_GetSet(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	_, _, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	want := sampleSet("fp")
	require.NoError(t, s.Set(ctx, "k", want, time.Minute))

	got, storedAt, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, want, got)
	assert.Equal(t, clock.now, storedAt)

	require.NoError(t, s.Delete(ctx, "k"))
	_, _, found, _ = s.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryStore_ExpiresLazily(t *testing.T) {
	clock := newClock()
	s := NewMemoryStore().WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", sampleSet("fp"), time.Minute))
	clock.Advance(59 * time.Second)
	_, _, found, _ := s.Get(ctx, "k")
	assert.True(t, found)

	clock.Advance(time.Second)
	assert.Equal(t, 1, s.Len())
	_, _, found, _ = s.Get(ctx, "k")
	assert.False(t, found)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SpreadsAcrossShards(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), sampleSet("fp"), time.Minute))
	}
	assert.Equal(t, 200, s.Len())

	used := 0
	for _, sh := range s.shards {
		if len(sh.entries) > 0 {
			used++
		}
	}
	assert.Greater(t, used, 1)
}
