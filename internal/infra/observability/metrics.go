package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	balanceFallbacks   *prometheus.CounterVec
	reconcileFailures  prometheus.Counter
	transactionsFolded prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "octopus_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "octopus_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "octopus_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "octopus_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		balanceFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "octopus_balance_fallbacks_total",
				Help: "Balance reconciliations that used the manual replay path.",
			},
			[]string{"reason"},
		),
		reconcileFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "octopus_reconcile_failures_total",
				Help: "Reconciliations where both the RPC and the replay failed.",
			},
		),
		transactionsFolded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "octopus_transactions_folded_total",
				Help: "Transactions replayed by the manual balance path.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrBalanceFallback counts a reconciliation that fell back to replay.
// reason is "rpc_missing" or "rpc_error".
func (m *Metrics) IncrBalanceFallback(reason string) {
	m.balanceFallbacks.WithLabelValues(reason).Inc()
}

// IncrReconcileFailure counts a reconciliation where both paths failed.
func (m *Metrics) IncrReconcileFailure() {
	m.reconcileFailures.Inc()
}

// AddTransactionsFolded counts transactions consumed by the replay fold.
func (m *Metrics) AddTransactionsFolded(n int) {
	m.transactionsFolded.Add(float64(n))
}
