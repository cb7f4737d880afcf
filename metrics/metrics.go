// Package metrics exposes Prometheus instrumentation for quota evaluation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotagate_decisions_total",
		Help: "Quota decisions by tier and outcome.",
	}, []string{"tier", "outcome"})

	storeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotagate_store_errors_total",
		Help: "Bucket store evaluation failures (converted to the configured fail-open or fail-closed result).",
	})

	evalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quotagate_evaluation_duration_seconds",
		Help:    "Latency of one atomic bucket evaluation against the store.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

// RecordDecision counts one allow/deny decision for a tier.
func RecordDecision(tier string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	decisions.WithLabelValues(tier, outcome).Inc()
}

// RecordStoreError counts one failed store evaluation.
func RecordStoreError() {
	storeErrors.Inc()
}

// ObserveEvaluation records the latency of one store evaluation.
func ObserveEvaluation(d time.Duration) {
	evalDuration.Observe(d.Seconds())
}
