package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch("duffel", "ok", time.Second)
		m.IncAttempt("duffel", "ok")
		m.SetSupplierHealthy("duffel", false)
		m.IncCacheLookup("hit")
		m.ObserveSearch("hybrid", time.Second, 3)
	})
}

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncCacheLookup("hit")
	m.IncCacheLookup("hit")
	m.SetSupplierHealthy("duffel", false)
	m.SetSupplierHealthy("catalog", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SupplierHealthy.WithLabelValues("duffel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SupplierHealthy.WithLabelValues("catalog")))
}
