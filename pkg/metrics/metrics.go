// Package metrics provides Prometheus metrics for the inventory service.
// Metrics are organized by component: HTTP, store, drafts, lifecycle and analysis.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moveout"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Failed store operations by operation",
		},
		[]string{"op"},
	)

	DraftWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "drafts",
			Name:      "writes_total",
			Help:      "Draft slot writes by result",
		},
		[]string{"result"},
	)

	ItemsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "published_total",
			Help:      "Items published to the catalog",
		},
	)

	ItemTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by target state",
		},
		[]string{"to"},
	)

	AnalysisOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "outcomes_total",
			Help:      "Analysis calls by outcome (success or fallback)",
		},
		[]string{"outcome"},
	)
)

// ObserveDraftWrite records a draft slot write.
func ObserveDraftWrite(err error) {
	if err != nil {
		DraftWrites.WithLabelValues("failure").Inc()
		return
	}
	DraftWrites.WithLabelValues("success").Inc()
}

// ObserveStoreError records a failed store operation.
func ObserveStoreError(op string) {
	StoreErrors.WithLabelValues(op).Inc()
}

// ObserveAnalysis records whether the analysis result was used or replaced by the fallback.
func ObserveAnalysis(ok bool) {
	if ok {
		AnalysisOutcomes.WithLabelValues("success").Inc()
		return
	}
	AnalysisOutcomes.WithLabelValues("fallback").Inc()
}
