// Package metrics exposes the process's Prometheus instrumentation. The
// exchange client's retry policy observes every request here so individual
// operations carry no metrics code of their own.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for exchange requests.
const (
	OutcomeOK               = "ok"
	OutcomeError            = "error"
	OutcomeTransportFailure = "transport_failure"
)

var (
	requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_requests_total",
		Help: "Exchange API requests by instruction, method and outcome.",
	}, []string{"instruction", "method", "outcome"})

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchange_request_duration_seconds",
		Help:    "Exchange API request latency by instruction and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"instruction", "method"})

	cycleDuration = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "pool_cycle_duration_seconds",
		Help: "Duration of one full pool processing pass.",
	})

	orderCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_orders_executed_total",
		Help: "Orders executed by pool and action.",
	}, []string{"pool", "action"})

	errorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_errors_total",
		Help: "Errors in pool processing by pool and stage.",
	}, []string{"pool", "stage"})
)

// ObserveRequest records one exchange API attempt.
func ObserveRequest(instruction, method string, elapsed time.Duration, outcome string) {
	requestCount.WithLabelValues(instruction, method, outcome).Inc()
	requestLatency.WithLabelValues(instruction, method).Observe(elapsed.Seconds())
}

// ObserveCycle records the duration of one full pool pass.
func ObserveCycle(elapsed time.Duration) {
	cycleDuration.Observe(elapsed.Seconds())
}

// CountOrder records one executed order for a pool.
func CountOrder(pool, action string) {
	orderCount.WithLabelValues(pool, action).Inc()
}

// CountError records one failed stage for a pool.
func CountError(pool, stage string) {
	errorCount.WithLabelValues(pool, stage).Inc()
}
