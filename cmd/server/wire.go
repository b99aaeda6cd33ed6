package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dharmasatrya/airsearch/internal/aggregator"
	"github.com/dharmasatrya/airsearch/internal/cache"
	"github.com/dharmasatrya/airsearch/internal/catalog"
	"github.com/dharmasatrya/airsearch/internal/config"
	"github.com/dharmasatrya/airsearch/internal/engine"
	"github.com/dharmasatrya/airsearch/internal/merge"
	"github.com/dharmasatrya/airsearch/internal/metrics"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/providers"
	"github.com/dharmasatrya/airsearch/internal/ratelimit"
	"github.com/dharmasatrya/airsearch/internal/registry"
	"github.com/dharmasatrya/airsearch/pkg/currency"
)

// app owns everything built from one configuration.
type app struct {
	engine   *engine.Engine
	gatherer prometheus.Gatherer
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)
	a.gatherer = promReg

	store, err := openCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	suppliers := cfg.SupplierList()
	reg, err := registry.New(suppliers)
	if err != nil {
		a.Close()
		return nil, err
	}
	tracker := registry.NewTracker(reg, registry.HealthConfig{
		FailureThreshold: cfg.Search.Health.FailureThreshold,
		ProbeInterval:    cfg.Search.Health.ProbeInterval,
	}, logger, m)

	limiter := ratelimit.NewSupplierLimiter(ratelimit.RateLimitConfig{
		RequestsPerSecond: cfg.Search.RateLimit.RPS,
		BurstSize:         cfg.Search.RateLimit.Burst,
	})

	// Attempts are bounded by their own contexts, not a client timeout.
	pool := providers.NewPool(providers.Dependencies{
		Catalog:    store,
		HTTPClient: &http.Client{},
		Logger:     logger,
	})

	agg := aggregator.NewAggregator(reg, tracker, pool, aggregator.Config{
		MasterTimeout: cfg.Search.MasterTimeout,
		Parallel:      cfg.Search.Parallel,
		MaxInFlight:   cfg.Search.MaxInFlight,
		Backoff: aggregator.Backoff{
			Initial:    cfg.Search.Backoff.Initial,
			Multiplier: cfg.Search.Backoff.Multiplier,
			Max:        cfg.Search.Backoff.Max,
		},
		DefaultSupplierTimeout: cfg.Search.SupplierTimeout,
		RateLimiter:            limiter,
	}, logger, m)

	var converter currency.Converter
	if len(cfg.Currency.Rates) > 0 {
		converter = currency.NewStaticConverter(cfg.Currency.Base, cfg.Currency.Rates)
	}
	merger := merge.New(merge.Options{
		Dedupe:     cfg.Merge.Dedupe,
		SortKey:    models.SortKey(cfg.Merge.SortKey),
		Direction:  models.SortDirection(cfg.Merge.SortDirection),
		MaxResults: cfg.Merge.MaxResults,
	}, converter, logger)

	results := cache.New(openCacheStore(cfg.Cache, logger), cache.Config{
		Enabled: cfg.Cache.Enabled,
		TTL:     cfg.Cache.TTL,
		Prefix:  cfg.Cache.Prefix,
	}, logger, m)
	a.closers = append(a.closers, results.Close)

	eng, err := engine.New(engine.Config{
		Mode:            models.SearchMode(cfg.Search.Mode),
		SupplierTimeout: cfg.Search.SupplierTimeout,
	}, engine.Components{
		Registry:   reg,
		Tracker:    tracker,
		Clients:    pool,
		Aggregator: agg,
		Merger:     merger,
		Cache:      results,
		Limiter:    limiter,
	}, logger, m)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = eng

	// A supplier whose client cannot be built is skipped; the rest still serve.
	if err := eng.Reload(suppliers); err != nil {
		logger.Warn("some suppliers are unavailable", "error", err)
	}
	return a, nil
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig, logger *slog.Logger) (catalog.Store, error) {
	var seed []catalog.Flight
	if cfg.SeedFile != "" {
		flights, err := catalog.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = flights
	}

	switch cfg.Driver {
	case config.CatalogPostgres:
		store, err := catalog.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("migrate catalog: %w", err)
			}
		}
		if len(seed) > 0 {
			if err := store.Upsert(ctx, seed); err != nil {
				store.Close()
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
		}
		logger.Info("catalog ready", "driver", cfg.Driver, "seeded", len(seed))
		return store, nil
	default:
		logger.Info("catalog ready", "driver", config.CatalogMemory, "flights", len(seed))
		return catalog.NewMemoryStore(seed), nil
	}
}

// openCacheStore falls back to running without a store when Redis is
// unreachable at startup.
func openCacheStore(cfg config.CacheConfig, logger *slog.Logger) cache.Store {
	switch cfg.Driver {
	case cache.DriverRedis:
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, caching disabled",
				"addr", cfg.Redis.Addr,
				"error", models.WrapError(models.KindCacheUnavailable, "", err))
			return cache.NewNoOpStore()
		}
		logger.Info("redis cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.TTL)
		return store
	case cache.DriverNoOp:
		return cache.NewNoOpStore()
	default:
		return cache.NewMemoryStore()
	}
}
