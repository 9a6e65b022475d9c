package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBuild(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveBuild(50*time.Millisecond, 120, 3)

	assert.Equal(t, float64(120), testutil.ToFloat64(m.CacheSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheReady))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.CacheGeneration))
}

func TestObserveQuery(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveQuery(time.Millisecond, "ok", 200, 8)
	m.ObserveQuery(time.Millisecond, "partial", 90, 3)
	m.IncrementOutcome("not_found")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryOutcome.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryOutcome.WithLabelValues("partial")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryOutcome.WithLabelValues("not_found")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBuild(time.Second, 1, 1)
		m.ObserveQuery(time.Second, "ok", 1, 1)
		m.IncrementOutcome("error")
		m.IncrementRegistryReload("ok")
		m.IncrementResultCache("hit")
		m.IncrementCatalogEvent("ok")
	})
}
