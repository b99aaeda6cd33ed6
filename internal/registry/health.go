package registry

import (
	"log/slog"
	"time"

	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/metrics"
	"github.com/dharmasatrya/airsearch/internal/models"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	// OutcomeIgnored is for errors that say nothing about supplier health,
	// such as an unknown offer reference or a rejected query.
	OutcomeIgnored
)

func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	switch models.KindOf(err) {
	case models.KindOfferNotFound, models.KindInvalidQuery:
		return OutcomeIgnored
	}
	return OutcomeFailure
}

type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures after which a
	// supplier is considered unhealthy.
	FailureThreshold int
	// ProbeInterval is how long an unhealthy supplier sits out before it is
	// offered one search again. Zero means the default.
	ProbeInterval time.Duration
}

func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		ProbeInterval:    30 * time.Second,
	}
}

// Tracker turns dispatch outcomes into supplier health.
type Tracker struct {
	registry *Registry
	config   HealthConfig
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewTracker(r *Registry, cfg HealthConfig, logger *slog.Logger, m *metrics.Metrics) *Tracker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultHealthConfig().FailureThreshold
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultHealthConfig().ProbeInterval
	}
	return &Tracker{
		registry: r,
		config:   cfg,
		now:      time.Now,
		logger:   logging.Default(logger).With("component", "health"),
		metrics:  m,
	}
}

// WithClock replaces the time source. Intended for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) Now() time.Time {
	return t.now()
}

// Record applies one outcome: success resets the failure count and marks the
// supplier healthy, failure increments it and marks the supplier unhealthy
// once the threshold is reached.
func (t *Tracker) Record(code string, outcome Outcome) {
	if outcome == OutcomeIgnored {
		return
	}

	var wasHealthy bool
	h, ok := t.registry.update(code, func(h *HealthStatus) {
		wasHealthy = h.Healthy
		h.LastChecked = t.now()
		if outcome == OutcomeSuccess {
			h.ConsecutiveFailures = 0
			h.Healthy = true
			return
		}
		h.ConsecutiveFailures++
		if h.ConsecutiveFailures >= t.config.FailureThreshold {
			h.Healthy = false
		}
	})
	if !ok {
		return
	}

	t.metrics.SetSupplierHealthy(code, h.Healthy)
	if wasHealthy != h.Healthy {
		t.logger.Info("supplier health changed",
			"supplier", code,
			"healthy", h.Healthy,
			"consecutive_failures", h.ConsecutiveFailures)
	}
}

// Admit reports whether a supplier with health h may be dispatched to at now.
// Unhealthy suppliers are admitted again once ProbeInterval has passed since
// their last recorded outcome.
func (t *Tracker) Admit(h HealthStatus, now time.Time) bool {
	if h.Healthy {
		return true
	}
	return now.Sub(h.LastChecked) >= t.config.ProbeInterval
}
