// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cache metrics, labelled by aggregator name
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheStale       *prometheus.CounterVec
	SharedWaits      *prometheus.CounterVec
	CacheEntries     prometheus.Gauge
	CacheInvalidated prometheus.Counter

	// Setter metrics
	Computations   *prometheus.CounterVec
	ComputeErrors  *prometheus.CounterVec
	ComputeLatency *prometheus.HistogramVec

	// Upstream metrics
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	OptionalDegraded *prometheus.CounterVec

	// Tip metrics
	TipHeight     prometheus.Gauge
	TipReconnects prometheus.Counter
	LastTipUpdate prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "explorer"
	}
	f := promauto.With(reg)

	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Fetches served from a fresh cache entry",
		}, []string{"aggregator"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Fetches that found no fresh cache entry",
		}, []string{"aggregator"}),
		CacheStale: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "stale_total",
			Help:      "Fetches that found an expired entry and replaced it",
		}, []string{"aggregator"}),
		SharedWaits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "shared_waits_total",
			Help:      "Fetches that joined a computation already in flight",
		}, []string{"aggregator"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held by the cache store",
		}),
		CacheInvalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entries removed by explicit invalidation",
		}),

		Computations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "computations_total",
			Help:      "Setter invocations by aggregator",
		}, []string{"aggregator"}),
		ComputeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "compute_errors_total",
			Help:      "Failed setter invocations by aggregator",
		}, []string{"aggregator"}),
		ComputeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "compute_duration_seconds",
			Help:      "Setter duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"aggregator"}),

		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Upstream call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "method"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_errors_total",
			Help:      "Failed upstream calls",
		}, []string{"source", "method"}),
		OptionalDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "optional_degraded_total",
			Help:      "Optional source failures absorbed by a merge",
		}, []string{"source"}),

		TipHeight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tip",
			Name:      "height",
			Help:      "Latest block height announced by the core node",
		}),
		TipReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tip",
			Name:      "reconnects_total",
			Help:      "Block feed websocket reconnects",
		}),
		LastTipUpdate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tip",
			Name:      "last_update_timestamp",
			Help:      "Unix timestamp of the last tip announcement",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordCacheHit increments the hit counter of aggregator.
func RecordCacheHit(aggregator string) {
	DefaultMetrics.CacheHits.WithLabelValues(aggregator).Inc()
}

// RecordCacheMiss increments the miss counter, and the stale counter when an
// expired entry was found.
func RecordCacheMiss(aggregator string, stale bool) {
	DefaultMetrics.CacheMisses.WithLabelValues(aggregator).Inc()
	if stale {
		DefaultMetrics.CacheStale.WithLabelValues(aggregator).Inc()
	}
}

// RecordSharedWait increments the shared wait counter.
func RecordSharedWait(aggregator string) {
	DefaultMetrics.SharedWaits.WithLabelValues(aggregator).Inc()
}

// RecordInvalidation increments the invalidation counter.
func RecordInvalidation() {
	DefaultMetrics.CacheInvalidated.Inc()
}

// UpdateCacheEntries sets the cache size gauge.
func UpdateCacheEntries(n int) {
	DefaultMetrics.CacheEntries.Set(float64(n))
}

// RecordComputation records one setter invocation.
func RecordComputation(aggregator string, seconds float64, err error) {
	DefaultMetrics.Computations.WithLabelValues(aggregator).Inc()
	DefaultMetrics.ComputeLatency.WithLabelValues(aggregator).Observe(seconds)
	if err != nil {
		DefaultMetrics.ComputeErrors.WithLabelValues(aggregator).Inc()
	}
}

// RecordUpstreamCall records upstream call metrics.
func RecordUpstreamCall(source, method string, seconds float64, err error) {
	DefaultMetrics.UpstreamLatency.WithLabelValues(source, method).Observe(seconds)
	if err != nil {
		DefaultMetrics.UpstreamErrors.WithLabelValues(source, method).Inc()
	}
}

// RecordDegraded increments the optional degradation counter of source.
func RecordDegraded(source string) {
	DefaultMetrics.OptionalDegraded.WithLabelValues(source).Inc()
}

// UpdateTip sets the tip height gauge and its update timestamp.
func UpdateTip(height int64, unix int64) {
	DefaultMetrics.TipHeight.Set(float64(height))
	DefaultMetrics.LastTipUpdate.Set(float64(unix))
}

// RecordTipReconnect increments the block feed reconnect counter.
func RecordTipReconnect() {
	DefaultMetrics.TipReconnects.Inc()
}
