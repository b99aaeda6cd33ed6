package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for supplier dispatch, caching and search.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Latency of each supplier attempt by outcome: "success" or the error kind
	DispatchLatency *prometheus.HistogramVec

	// Supplier attempts by outcome, retries counted one by one
	SupplierAttempts *prometheus.CounterVec

	// 1 while the supplier is healthy, 0 otherwise
	SupplierHealthy *prometheus.GaugeVec

	// Cache lookups by result: hit, miss or error
	CacheLookups *prometheus.CounterVec

	SearchLatency  *prometheus.HistogramVec
	OffersReturned prometheus.Histogram
}

// New registers every metric on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DispatchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "airsearch_supplier_dispatch_duration_seconds",
			Help:    "Duration of single supplier attempts, by outcome",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"supplier", "outcome"}),

		SupplierAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "airsearch_supplier_attempts_total",
			Help: "Supplier search attempts by outcome",
		}, []string{"supplier", "outcome"}),

		SupplierHealthy: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "airsearch_supplier_healthy",
			Help: "Supplier health as tracked from dispatch outcomes",
		}, []string{"supplier"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "airsearch_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}),

		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "airsearch_search_duration_seconds",
			Help:    "End to end search duration by mode",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"mode"}),

		OffersReturned: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "airsearch_search_offers",
			Help:    "Offers in merged result sets",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) ObserveDispatch(supplier, outcome string, d time.Duration) {
	if m != nil {
		m.DispatchLatency.WithLabelValues(supplier, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncAttempt(supplier, outcome string) {
	if m != nil {
		m.SupplierAttempts.WithLabelValues(supplier, outcome).Inc()
	}
}

func (m *Metrics) SetSupplierHealthy(supplier string, healthy bool) {
	if m != nil {
		v := 0.0
		if healthy {
			v = 1
		}
		m.SupplierHealthy.WithLabelValues(supplier).Set(v)
	}
}

func (m *Metrics) IncCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveSearch(mode string, d time.Duration, offers int) {
	if m != nil {
		m.SearchLatency.WithLabelValues(mode).Observe(d.Seconds())
		m.OffersReturned.Observe(float64(offers))
	}
}
