// file: internal/metrics/metrics.go
// version: 2.0.0
// guid: 7d4b375d-50f7-46b3-9b02-419f3e34bed0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	strategyOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookmeta",
		Name:      "strategy_outcomes_total",
		Help:      "Resolution and search strategy outcomes by operation, strategy and outcome",
	}, []string{"operation", "strategy", "outcome"})
	resolveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookmeta",
		Name:      "resolve_duration_seconds",
		Help:      "Histogram of time to first successful strategy by operation",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation"})
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookmeta",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache kind and result",
	}, []string{"kind", "result"})
	cacheWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookmeta",
		Name:      "cache_write_failures_total",
		Help:      "Failed best-effort cache write-backs by kind",
	}, []string{"kind"})
	searchResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookmeta",
		Name:      "search_results",
		Help:      "Number of deduplicated results returned by search operation",
		Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
	}, []string{"operation"})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(strategyOutcomes, resolveDuration, cacheLookups, cacheWriteFailures, searchResults)
	})
}

// Strategy outcome helpers
func IncStrategy(operation, strategy, outcome string) {
	strategyOutcomes.WithLabelValues(operation, strategy, outcome).Inc()
}
func ObserveResolveDuration(operation string, d time.Duration) {
	resolveDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Cache helpers
func IncCacheLookup(kind, result string)    { cacheLookups.WithLabelValues(kind, result).Inc() }
func IncCacheWriteFailure(kind string)      { cacheWriteFailures.WithLabelValues(kind).Inc() }
func ObserveSearchResults(op string, n int) { searchResults.WithLabelValues(op).Observe(float64(n)) }
