// Package cache holds merged search results keyed by query fingerprint and
// collapses concurrent identical searches into one computation.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/metrics"
	"github.com/dharmasatrya/airsearch/internal/models"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNoOp   = "noop"
)

type Config struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,
		TTL:     5 * time.Minute,
		Prefix:  "airsearch",
	}
}

// ComputeFunc produces a result set on a cache miss.
type ComputeFunc func(ctx context.Context) (*models.MergedResultSet, error)

type Cache struct {
	store   Store
	config  Config
	group   Group[result]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type result struct {
	set *models.MergedResultSet
	hit bool
}

func New(store Store, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Cache {
	if store == nil {
		store = NewNoOpStore()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Cache{
		store:   store,
		config:  cfg,
		logger:  logging.Default(logger).With("component", "cache"),
		metrics: m,
	}
}

// Key scopes a fingerprint by search mode; the same query in a different
// mode fans out to different suppliers.
func (c *Cache) Key(mode models.SearchMode, fingerprint string) string {
	prefix := c.config.Prefix
	if prefix == "" {
		prefix = DefaultConfig().Prefix
	}
	return prefix + ":" + string(mode) + ":" + fingerprint
}

func (c *Cache) Enabled() bool {
	return c.config.Enabled
}

// Get returns a live entry for key. Store failures read as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*models.MergedResultSet, bool) {
	if !c.config.Enabled {
		return nil, false
	}
	set, ok := c.load(ctx, key)
	if ok {
		c.metrics.IncCacheLookup("hit")
	} else {
		c.metrics.IncCacheLookup("miss")
	}
	return set, ok
}

// GetOrCompute returns the live entry for key, or runs compute once for all
// concurrent callers of key and stores its result. hit is true when no
// computation was started on this caller's behalf.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*models.MergedResultSet, bool, error) {
	if !c.config.Enabled {
		set, err := compute(ctx)
		return set, false, err
	}

	if set, ok := c.Get(ctx, key); ok {
		return set, true, nil
	}

	r, shared, err := c.group.Do(ctx, key, func(fctx context.Context) (result, error) {
		// A concurrent flight may have stored the key since our lookup.
		if set, ok := c.load(fctx, key); ok {
			return result{set: set, hit: true}, nil
		}
		set, err := compute(fctx)
		if err != nil {
			return result{}, err
		}
		c.save(fctx, key, set)
		return result{set: set}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return r.set, r.hit || shared, nil
}

// Invalidate drops key from the store.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.degraded("delete", key, err)
	}
}

func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) load(ctx context.Context, key string) (*models.MergedResultSet, bool) {
	set, _, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.degraded("get", key, err)
		return nil, false
	}
	return set, found
}

func (c *Cache) save(ctx context.Context, key string, set *models.MergedResultSet) {
	if set == nil || len(set.Contributing) == 0 {
		return
	}
	if err := c.store.Set(ctx, key, set, c.config.TTL); err != nil {
		c.degraded("set", key, err)
	}
}

func (c *Cache) degraded(op, key string, err error) {
	c.metrics.IncCacheLookup("error")
	c.logger.Warn("cache store unavailable, continuing without it",
		"op", op,
		"key", key,
		"error", models.WrapError(models.KindCacheUnavailable, "", err))
}
