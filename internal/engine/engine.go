// Package engine ties the supplier registry, fan-out, merge and result cache
// together behind the operations the API and CLI expose.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dharmasatrya/airsearch/internal/aggregator"
	"github.com/dharmasatrya/airsearch/internal/cache"
	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/merge"
	"github.com/dharmasatrya/airsearch/internal/metrics"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/providers"
	"github.com/dharmasatrya/airsearch/internal/ratelimit"
	"github.com/dharmasatrya/airsearch/internal/registry"
)

const tracerName = "github.com/dharmasatrya/airsearch/internal/engine"

type Config struct {
	// Mode is used when a search does not name one.
	Mode models.SearchMode
	// SupplierTimeout bounds detail and pricing calls to suppliers without a
	// timeout of their own.
	SupplierTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Mode:            models.ModeHybrid,
		SupplierTimeout: 2 * time.Second,
	}
}

// Components are the collaborators an Engine drives. Cache and Limiter are
// optional.
type Components struct {
	Registry   *registry.Registry
	Tracker    *registry.Tracker
	Clients    *providers.Pool
	Aggregator *aggregator.Aggregator
	Merger     *merge.Merger
	Cache      *cache.Cache
	Limiter    *ratelimit.SupplierLimiter
}

type Engine struct {
	registry   *registry.Registry
	tracker    *registry.Tracker
	clients    *providers.Pool
	aggregator *aggregator.Aggregator
	merger     *merge.Merger
	cache      *cache.Cache
	limiter    *ratelimit.SupplierLimiter
	config     Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func New(cfg Config, c Components, logger *slog.Logger, m *metrics.Metrics) (*Engine, error) {
	if c.Registry == nil || c.Tracker == nil || c.Clients == nil || c.Aggregator == nil || c.Merger == nil {
		return nil, errors.New("engine: registry, tracker, clients, aggregator and merger are required")
	}
	if cfg.Mode == "" {
		cfg.Mode = DefaultConfig().Mode
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("engine: %w", models.ErrInvalidMode)
	}
	if cfg.SupplierTimeout <= 0 {
		cfg.SupplierTimeout = DefaultConfig().SupplierTimeout
	}
	logger = logging.Default(logger)
	if c.Cache == nil {
		c.Cache = cache.New(cache.NewNoOpStore(), cache.Config{Enabled: false}, logger, m)
	}
	return &Engine{
		registry:   c.Registry,
		tracker:    c.Tracker,
		clients:    c.Clients,
		aggregator: c.Aggregator,
		merger:     c.Merger,
		cache:      c.Cache,
		limiter:    c.Limiter,
		config:     cfg,
		logger:     logger.With("component", "engine"),
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// Search answers q from the cache or by fanning out to the suppliers of mode.
// An empty mode means the configured default. The returned set may be shared
// with other callers and must not be modified.
func (e *Engine) Search(ctx context.Context, q models.SearchQuery, mode models.SearchMode) (*models.MergedResultSet, bool, error) {
	if mode == "" {
		mode = e.config.Mode
	}
	if !mode.Valid() {
		return nil, false, models.WrapError(models.KindInvalidQuery, "", models.ErrInvalidMode)
	}
	if err := q.Validate(); err != nil {
		return nil, false, models.WrapError(models.KindInvalidQuery, "", err)
	}

	fp := q.Fingerprint()
	ctx, span := e.tracer.Start(ctx, "engine.Search", trace.WithAttributes(
		attribute.String("search.mode", string(mode)),
		attribute.String("search.fingerprint", fp),
	))
	defer span.End()

	start := time.Now()
	set, hit, err := e.cache.GetOrCompute(ctx, e.cache.Key(mode, fp), func(ctx context.Context) (*models.MergedResultSet, error) {
		res, err := e.aggregator.Search(ctx, q, mode)
		if err != nil {
			return nil, err
		}
		set := e.merger.Merge(res.Contributions, res.Failed)
		set.Fingerprint = fp
		return set, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(models.KindOf(err)))
		e.logger.Warn("search failed",
			"mode", mode,
			"fingerprint", fp,
			"kind", models.KindOf(err),
			"error", err)
		return nil, false, err
	}

	elapsed := time.Since(start)
	e.metrics.ObserveSearch(string(mode), elapsed, len(set.Offers))
	span.SetAttributes(
		attribute.Bool("search.cache_hit", hit),
		attribute.Int("search.offers", len(set.Offers)),
	)
	e.logger.Info("search completed",
		"mode", mode,
		"fingerprint", fp,
		"offers", len(set.Offers),
		"failed", len(set.Failed),
		"cache_hit", hit,
		"duration", elapsed)
	return set, hit, nil
}

// Sort reorders and caps a copy of set; set itself may be a shared cached
// value.
func (e *Engine) Sort(set *models.MergedResultSet, key models.SortKey, dir models.SortDirection) *models.MergedResultSet {
	return e.merger.Sort(set, key, dir)
}

func (e *Engine) DefaultMode() models.SearchMode {
	return e.config.Mode
}

// OfferDetails fetches the full offer behind a supplier reference.
func (e *Engine) OfferDetails(ctx context.Context, supplier, reference string) (models.Offer, error) {
	return call(ctx, e, "engine.OfferDetails", supplier, reference, func(ctx context.Context, c providers.Client) (models.Offer, error) {
		return c.GetOfferDetails(ctx, reference)
	})
}

// PriceOffer re-validates the price of an offer with its supplier.
func (e *Engine) PriceOffer(ctx context.Context, supplier, reference string) (models.Price, error) {
	return call(ctx, e, "engine.PriceOffer", supplier, reference, func(ctx context.Context, c providers.Client) (models.Price, error) {
		return c.PriceOffer(ctx, reference)
	})
}

// Suppliers returns every configured supplier with its health, in priority
// order.
func (e *Engine) Suppliers() []registry.SupplierState {
	return e.registry.Snapshot()
}

// Reload applies a new supplier configuration. Health survives for suppliers
// that stay configured; suppliers without a rate limit of their own keep the
// limiter default. A client build failure leaves that supplier without a
// client and is returned; every other supplier is still reloaded.
func (e *Engine) Reload(suppliers []registry.Supplier) error {
	if err := e.registry.Apply(suppliers); err != nil {
		return fmt.Errorf("engine: reload: %w", err)
	}
	if e.limiter != nil {
		for _, s := range suppliers {
			if s.Settings.RateLimit > 0 {
				e.limiter.SetSupplierLimit(s.Code, s.Settings.RateLimit, s.Settings.Burst)
			}
		}
	}
	err := e.clients.Sync(suppliers)
	e.logger.Info("suppliers reloaded", "suppliers", len(suppliers), "error", err)
	return err
}

// call runs one single-supplier operation under the supplier's timeout and
// records its outcome on the health tracker. A reference the client no
// longer knows is restored from the cached result set that issued it, and
// the operation is tried once more.
func call[T any](ctx context.Context, e *Engine, op, code, reference string, fn func(context.Context, providers.Client) (T, error)) (T, error) {
	var zero T
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("supplier.code", code)))
	defer span.End()

	s, ok := e.registry.Get(code)
	if !ok {
		return zero, models.NewError(models.KindOfferNotFound, code, "unknown supplier")
	}
	if !s.Enabled {
		return zero, models.NewError(models.KindSupplierUnavailable, code, "supplier is disabled")
	}
	client, ok := e.clients.Get(code)
	if !ok {
		return zero, models.NewError(models.KindSupplierUnavailable, code, "supplier has no client")
	}

	timeout := s.Settings.Timeout
	if timeout <= 0 {
		timeout = e.config.SupplierTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(actx, client)
	if models.KindOf(err) == models.KindOfferNotFound {
		if r, ok := client.(providers.Restorer); ok {
			if key, restored := e.restore(actx, r, reference); restored {
				v, err = fn(actx, client)
				if models.KindOf(err) == models.KindOfferNotFound {
					// The cached set still lists an offer its supplier withdrew.
					e.cache.Invalidate(ctx, key)
				}
			}
		}
	}
	if err == nil {
		e.tracker.Record(code, registry.OutcomeSuccess)
		return v, nil
	}

	if cerr := ctx.Err(); cerr != nil {
		return zero, cerr
	}
	err = models.SupplierError(code, err, actx)
	e.tracker.Record(code, registry.OutcomeOf(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(models.KindOf(err)))
	e.logger.Warn("supplier call failed",
		"op", op,
		"supplier", code,
		"kind", models.KindOf(err),
		"error", err)
	return zero, err
}

// restore looks reference up in the cached result sets of the search that
// issued it and hands the offer back to its client. It returns the cache key
// of the set the offer came from.
func (e *Engine) restore(ctx context.Context, r providers.Restorer, reference string) (string, bool) {
	fp, ok := r.SearchFingerprint(reference)
	if !ok {
		return "", false
	}
	for _, mode := range []models.SearchMode{models.ModeExternal, models.ModeHybrid, models.ModeLocal} {
		key := e.cache.Key(mode, fp)
		set, found := e.cache.Get(ctx, key)
		if !found {
			continue
		}
		for _, o := range set.Offers {
			if o.SupplierCode != r.Code() || o.SupplierReference != reference {
				continue
			}
			if err := r.Restore(o); err != nil {
				e.logger.Warn("cached offer could not be restored",
					"supplier", r.Code(),
					"reference", reference,
					"error", err)
				return "", false
			}
			e.logger.Debug("offer restored from cached result", "supplier", r.Code(), "reference", reference)
			return key, true
		}
	}
	return "", false
}
