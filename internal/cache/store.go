package cache

import (
	"context"
	"time"

	"github.com/dharmasatrya/airsearch/internal/models"
)

// Store is the storage behind a Cache. Get reports found=false for missing
// and expired entries; err is reserved for a store that cannot answer.
type Store interface {
	Get(ctx context.Context, key string) (set *models.MergedResultSet, storedAt time.Time, found bool, err error)
	Set(ctx context.Context, key string, set *models.MergedResultSet, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NoOpStore never holds anything. Searches still collapse in flight.
type NoOpStore struct{}

func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

func (NoOpStore) Get(ctx context.Context, key string) (*models.MergedResultSet, time.Time, bool, error) {
	return nil, time.Time{}, false, nil
}

func (NoOpStore) Set(ctx context.Context, key string, set *models.MergedResultSet, ttl time.Duration) error {
	return nil
}

func (NoOpStore) Delete(ctx context.Context, key string) error {
	return nil
}

func (NoOpStore) Close() error {
	return nil
}
