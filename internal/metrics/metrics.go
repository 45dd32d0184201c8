// Package metrics holds the Prometheus instrumentation for the policy
// decision point engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the PDP engine. Pass to
// components that need to record measurements.
type Metrics struct {
	DecisionsTotal     *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	CacheLookupsTotal  *prometheus.CounterVec
}

// New creates and registers all metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdp",
				Name:      "decisions_total",
				Help:      "Total number of decisions rendered, by result",
			},
			[]string{"result"}, // result=Permit/Deny/NotApplicable/Indeterminate
		),
		EvaluationDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pdp",
				Name:      "evaluation_duration_seconds",
				Help:      "Time to evaluate one request, across all of its individual decision requests",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CacheLookupsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdp",
				Name:      "cache_lookups_total",
				Help:      "Total decision cache lookups, by outcome",
			},
			[]string{"outcome"}, // outcome=hit/miss
		),
	}
}
