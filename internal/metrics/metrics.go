// Package metrics holds the prometheus collectors for sync runs and outbound
// catalog API traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync run metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discogsdash_sync_runs_total",
			Help: "Total number of collection sync runs by outcome",
		},
		[]string{"outcome"}, // "success", "error", "rejected"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discogsdash_sync_duration_seconds",
			Help:    "Duration of collection sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
	)

	CollectionItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discogsdash_collection_items",
			Help: "Number of items stored by the last successful sync",
		},
	)

	PriceLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discogsdash_price_lookup_failures_total",
			Help: "Per-item price lookups that failed and were recorded without a value",
		},
	)

	// Outbound API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discogsdash_api_requests_total",
			Help: "Outbound catalog API requests by status code",
		},
		[]string{"code"},
	)

	APIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discogsdash_api_request_duration_seconds",
			Help:    "Latency of outbound catalog API requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discogsdash_api_retries_total",
			Help: "Retries scheduled by the retry engine, by operation",
		},
		[]string{"op"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discogsdash_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discogsdash_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordSyncRun records the outcome of one sync run.
func RecordSyncRun(duration time.Duration, items int, err error) {
	SyncDuration.Observe(duration.Seconds())
	if err != nil {
		SyncRuns.WithLabelValues("error").Inc()
		return
	}
	SyncRuns.WithLabelValues("success").Inc()
	CollectionItems.Set(float64(items))
}

// RecordSyncRejected counts a trigger refused because a run was in flight.
func RecordSyncRejected() {
	SyncRuns.WithLabelValues("rejected").Inc()
}

// RecordRetry is suitable as a retry.Policy OnRetry hook.
func RecordRetry(op string) func(int, time.Duration, error) {
	return func(int, time.Duration, error) {
		APIRetries.WithLabelValues(op).Inc()
	}
}
