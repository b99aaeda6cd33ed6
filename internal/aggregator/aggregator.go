// Package aggregator fans a search out to every candidate supplier and
// collects what comes back before the master deadline.
package aggregator

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/metrics"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/providers"
	"github.com/dharmasatrya/airsearch/internal/ratelimit"
	"github.com/dharmasatrya/airsearch/internal/registry"
)

const tracerName = "github.com/dharmasatrya/airsearch/internal/aggregator"

// Backoff is the delay schedule between attempts on one supplier.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    100 * time.Millisecond,
		Multiplier: 2,
		Max:        time.Second,
	}
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(b.Initial) * math.Pow(mult, float64(attempt-1)))
	if b.Max > 0 && (d > b.Max || d <= 0) {
		d = b.Max
	}
	return d
}

type Config struct {
	MasterTimeout time.Duration
	// Parallel dispatches to candidates concurrently, at most MaxInFlight at
	// a time (0 means no bound); otherwise one at a time in priority order.
	Parallel               bool
	MaxInFlight            int
	Backoff                Backoff
	DefaultSupplierTimeout time.Duration
	RateLimiter            *ratelimit.SupplierLimiter
}

func DefaultConfig() Config {
	return Config{
		MasterTimeout:          5 * time.Second,
		Parallel:               true,
		Backoff:                DefaultBackoff(),
		DefaultSupplierTimeout: 2 * time.Second,
	}
}

// ClientSource resolves a supplier code to its live client.
type ClientSource interface {
	Get(code string) (providers.Client, bool)
}

type Aggregator struct {
	registry *registry.Registry
	tracker  *registry.Tracker
	clients  ClientSource
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Result holds the successful contributions in supplier-priority order, empty
// ones included, and every failure.
type Result struct {
	Contributions []models.SupplierOffers
	Failed        []models.SupplierFailure
	Queried       int
}

func NewAggregator(reg *registry.Registry, tracker *registry.Tracker, clients ClientSource, config Config, logger *slog.Logger, m *metrics.Metrics) *Aggregator {
	if config.DefaultSupplierTimeout <= 0 {
		config.DefaultSupplierTimeout = DefaultConfig().DefaultSupplierTimeout
	}
	return &Aggregator{
		registry: reg,
		tracker:  tracker,
		clients:  clients,
		config:   config,
		logger:   logging.Default(logger).With("component", "aggregator"),
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
	}
}

type candidate struct {
	supplier registry.Supplier
	client   providers.Client
}

// Candidates returns the enabled suppliers taking part in mode that the
// health tracker admits, in priority order. When health would exclude every
// one of them, all are returned instead.
func (a *Aggregator) Candidates(mode models.SearchMode) []registry.Supplier {
	cands := a.candidates(mode)
	out := make([]registry.Supplier, len(cands))
	for i, c := range cands {
		out[i] = c.supplier
	}
	return out
}

func (a *Aggregator) candidates(mode models.SearchMode) []candidate {
	now := a.tracker.Now()
	var eligible, admitted []candidate
	for _, st := range a.registry.Snapshot() {
		s := st.Supplier
		if !s.Enabled || !s.InMode(mode) {
			continue
		}
		client, ok := a.clients.Get(s.Code)
		if !ok {
			a.logger.Warn("supplier has no client, skipping", "supplier", s.Code)
			continue
		}
		c := candidate{supplier: s, client: client}
		eligible = append(eligible, c)
		if a.tracker.Admit(st.Health, now) {
			admitted = append(admitted, c)
		}
	}

	if len(admitted) == 0 && len(eligible) > 0 {
		a.logger.Warn("every supplier is unhealthy, dispatching to all of them",
			"mode", mode,
			"suppliers", len(eligible))
		return eligible
	}
	return admitted
}

type dispatchResult struct {
	index     int
	offers    []models.Offer
	err       error
	attempts  int
	throttled bool
}

// Search dispatches q to every candidate for mode. It fails only when no
// candidate succeeds or the caller goes away.
func (a *Aggregator) Search(ctx context.Context, q models.SearchQuery, mode models.SearchMode) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "aggregator.Search", trace.WithAttributes(
		attribute.String("search.mode", string(mode)),
		attribute.String("search.fingerprint", q.Fingerprint()),
	))
	defer span.End()

	cands := a.candidates(mode)
	span.SetAttributes(attribute.Int("search.candidates", len(cands)))
	if len(cands) == 0 {
		err := models.NewError(models.KindNoSupplierAvailable, "", "no enabled supplier for mode "+string(mode))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	searchCtx := ctx
	if a.config.MasterTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, a.config.MasterTimeout)
		defer cancel()
	}

	// Buffered so a dispatch finishing after the collector has left never blocks.
	resultCh := make(chan dispatchResult, len(cands))
	started := make([]atomic.Bool, len(cands))

	run := func(i int) {
		c := cands[i]
		started[i].Store(true)
		offers, attempts, throttled, err := a.dispatch(searchCtx, c, q)
		resultCh <- dispatchResult{index: i, offers: offers, err: err, attempts: attempts, throttled: throttled}
	}

	if a.config.Parallel {
		limit := int64(len(cands))
		if a.config.MaxInFlight > 0 && int64(a.config.MaxInFlight) < limit {
			limit = int64(a.config.MaxInFlight)
		}
		sem := semaphore.NewWeighted(limit)
		for i := range cands {
			go func(i int) {
				if err := sem.Acquire(searchCtx, 1); err != nil {
					resultCh <- dispatchResult{index: i, err: models.WrapError(models.KindSupplierTimeout, cands[i].supplier.Code, err)}
					return
				}
				defer sem.Release(1)
				run(i)
			}(i)
		}
	} else {
		go func() {
			for i := range cands {
				if err := searchCtx.Err(); err != nil {
					resultCh <- dispatchResult{index: i, err: models.WrapError(models.KindSupplierTimeout, cands[i].supplier.Code, err)}
					continue
				}
				run(i)
			}
		}()
	}

	results := make([]*dispatchResult, len(cands))
	received := 0
	accept := func(r dispatchResult) {
		results[r.index] = &r
		received++
		a.record(ctx, cands[r.index].supplier.Code, r, started[r.index].Load())
	}
collect:
	for received < len(cands) {
		select {
		case r := <-resultCh:
			accept(r)
		case <-searchCtx.Done():
			// Keep whatever already arrived.
			for {
				select {
				case r := <-resultCh:
					accept(r)
				default:
					break collect
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "caller cancelled")
		return nil, err
	}

	res := &Result{Queried: len(cands)}
	for i, c := range cands {
		code := c.supplier.Code
		r := results[i]
		switch {
		case r == nil:
			if started[i].Load() {
				a.tracker.Record(code, registry.OutcomeFailure)
			}
			err := models.NewError(models.KindSupplierTimeout, code, "no response before the search deadline")
			res.Failed = append(res.Failed, failure(code, err))
			a.logger.Warn("supplier missed the search deadline", "supplier", code)
		case r.err == nil:
			res.Contributions = append(res.Contributions, models.SupplierOffers{Supplier: code, Offers: r.offers})
		default:
			res.Failed = append(res.Failed, failure(code, r.err))
			a.logger.Warn("supplier search failed",
				"supplier", code,
				"kind", models.KindOf(r.err),
				"attempts", r.attempts,
				"error", r.err)
		}
	}

	span.SetAttributes(
		attribute.Int("search.contributing", len(res.Contributions)),
		attribute.Int("search.failed", len(res.Failed)),
	)

	if len(res.Contributions) == 0 {
		err := &models.Error{
			Kind:    models.KindNoSupplierAvailable,
			Message: "every supplier failed",
			Failed:  res.Failed,
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

// record feeds a final dispatch outcome to the health tracker. Outcomes of
// dispatches that never started, were throttled locally, or were cut short by
// the caller going away say nothing about the supplier.
func (a *Aggregator) record(ctx context.Context, code string, r dispatchResult, started bool) {
	if r.err == nil {
		a.tracker.Record(code, registry.OutcomeSuccess)
		return
	}
	if !started || r.throttled || ctx.Err() != nil {
		return
	}
	a.tracker.Record(code, registry.OutcomeOf(r.err))
}

// dispatch runs one supplier's attempts. Only transient failures are retried,
// and never past ctx.
func (a *Aggregator) dispatch(ctx context.Context, c candidate, q models.SearchQuery) ([]models.Offer, int, bool, error) {
	s := c.supplier
	ctx, span := a.tracer.Start(ctx, "aggregator.dispatch", trace.WithAttributes(
		attribute.String("supplier.code", s.Code),
		attribute.String("supplier.driver", s.Driver),
	))
	defer span.End()

	timeout := s.Settings.Timeout
	if timeout <= 0 {
		timeout = a.config.DefaultSupplierTimeout
	}
	retries := s.Settings.Retries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(a.config.Backoff.Delay(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				span.SetAttributes(attribute.Int("supplier.attempts", attempts))
				return nil, attempts, false, lastErr
			}
		}

		if a.config.RateLimiter != nil {
			if err := a.config.RateLimiter.Wait(ctx, s.Code); err != nil {
				if lastErr == nil {
					lastErr = models.WrapError(models.KindSupplierTimeout, s.Code, err)
					span.RecordError(lastErr)
					return nil, attempts, true, lastErr
				}
				break
			}
		}

		attempts++
		start := time.Now()
		actx, cancel := context.WithTimeout(ctx, timeout)
		offers, err := c.client.Search(actx, q)
		cancel()
		err = models.SupplierError(s.Code, err, actx)

		kind := "success"
		if err != nil {
			kind = string(models.KindOf(err))
		}
		a.metrics.ObserveDispatch(s.Code, kind, time.Since(start))
		a.metrics.IncAttempt(s.Code, kind)

		if err == nil {
			span.SetAttributes(attribute.Int("supplier.attempts", attempts))
			return offers, attempts, false, nil
		}

		lastErr = err
		a.logger.Debug("supplier attempt failed",
			"supplier", s.Code,
			"attempt", attempts,
			"kind", kind,
			"error", err)
		if !models.IsTransient(err) || ctx.Err() != nil {
			break
		}
	}

	span.SetAttributes(attribute.Int("supplier.attempts", attempts))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, string(models.KindOf(lastErr)))
	return nil, attempts, false, lastErr
}

func failure(code string, err error) models.SupplierFailure {
	return models.SupplierFailure{
		Supplier: code,
		Kind:     models.KindOf(err),
		Message:  err.Error(),
	}
}
