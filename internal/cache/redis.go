package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dharmasatrya/airsearch/internal/models"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
		DB:   0,
	}
}

// RedisStore keeps result sets in Redis, msgpack encoded. Redis expires keys
// server-side; the stored-at stamp guards against clock skew between nodes.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

type redisEnvelope struct {
	StoredAt time.Time               `msgpack:"stored_at"`
	TTL      time.Duration           `msgpack:"ttl"`
	Set      *models.MergedResultSet `msgpack:"set"`
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreFromClient(client), nil
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.MergedResultSet, time.Time, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	var env redisEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		// Unreadable entries are treated as absent and replaced on the next store.
		return nil, time.Time{}, false, nil
	}
	if env.Set == nil || !s.now().Before(env.StoredAt.Add(env.TTL)) {
		return nil, time.Time{}, false, nil
	}
	return env.Set, env.StoredAt, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, set *models.MergedResultSet, ttl time.Duration) error {
	data, err := msgpack.Marshal(redisEnvelope{StoredAt: s.now(), TTL: ttl, Set: set})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
