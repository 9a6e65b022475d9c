package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the intelligence engine.
type Metrics struct {
	// Cache lifecycle
	CacheBuildDuration prometheus.Histogram
	CacheSize          prometheus.Gauge
	CacheReady         prometheus.Gauge
	CacheGeneration    prometheus.Gauge

	// Related-products queries
	QueryDuration    prometheus.Histogram
	QueryOutcome     *prometheus.CounterVec
	CandidatesScored prometheus.Histogram
	ResultsReturned  prometheus.Histogram

	// Collaborators
	RegistryReloads    *prometheus.CounterVec
	ResultCacheLookups *prometheus.CounterVec
	CatalogEvents      *prometheus.CounterVec
}

// New creates a new Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheBuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "armory_intel_cache_build_duration_seconds",
			Help:    "Duration of full intelligence cache builds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "armory_intel_cache_size",
			Help: "Number of products in the current cache snapshot",
		}),
		CacheReady: f.NewGauge(prometheus.GaugeOpts{
			Name: "armory_intel_cache_ready",
			Help: "1 once the intelligence cache has completed a build",
		}),
		CacheGeneration: f.NewGauge(prometheus.GaugeOpts{
			Name: "armory_intel_cache_generation",
			Help: "Generation counter of the current cache snapshot",
		}),

		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "armory_intel_related_duration_seconds",
			Help:    "Duration of related-products queries",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		QueryOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "armory_intel_related_outcomes_total",
			Help: "Related-products query outcomes",
		}, []string{"outcome"}), // outcome: "ok", "partial", "cache_hit", "not_found", "not_ready", "error"
		CandidatesScored: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "armory_intel_candidates_scored",
			Help:    "Candidates scored per query",
			Buckets: []float64{0, 10, 25, 50, 100, 200, 500, 1000},
		}),
		ResultsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "armory_intel_results_returned",
			Help:    "Ranked items returned per query",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 50},
		}),

		RegistryReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "armory_intel_registry_reloads_total",
			Help: "Equivalence registry reload attempts by result",
		}, []string{"result"}),
		ResultCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "armory_intel_result_cache_lookups_total",
			Help: "Result cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
		CatalogEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "armory_catalog_events_total",
			Help: "Catalog change events consumed by result",
		}, []string{"result"}),
	}
}

// ObserveBuild records a completed cache build.
func (m *Metrics) ObserveBuild(d time.Duration, size int, generation uint64) {
	if m == nil {
		return
	}
	m.CacheBuildDuration.Observe(d.Seconds())
	m.CacheSize.Set(float64(size))
	m.CacheReady.Set(1)
	m.CacheGeneration.Set(float64(generation))
}

// ObserveQuery records a finished related-products query.
func (m *Metrics) ObserveQuery(d time.Duration, outcome string, scored, returned int) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
	m.QueryOutcome.WithLabelValues(outcome).Inc()
	m.CandidatesScored.Observe(float64(scored))
	m.ResultsReturned.Observe(float64(returned))
}

// IncrementOutcome records a query that ended before scoring.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.QueryOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementRegistryReload records a registry reload attempt.
func (m *Metrics) IncrementRegistryReload(result string) {
	if m != nil {
		m.RegistryReloads.WithLabelValues(result).Inc()
	}
}

// IncrementResultCache records a result cache lookup.
func (m *Metrics) IncrementResultCache(result string) {
	if m != nil {
		m.ResultCacheLookups.WithLabelValues(result).Inc()
	}
}

// IncrementCatalogEvent records a consumed catalog change event.
func (m *Metrics) IncrementCatalogEvent(result string) {
	if m != nil {
		m.CatalogEvents.WithLabelValues(result).Inc()
	}
}
