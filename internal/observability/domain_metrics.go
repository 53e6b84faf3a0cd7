package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	schemaInspectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsqlgen_schema_inspections_total",
			Help: "Total number of schema inspections by outcome.",
		},
		[]string{"outcome"},
	)
	schemaInspectionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tsqlgen_schema_inspection_duration_seconds",
			Help:    "Schema inspection latency including connection setup.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	schemaPartialTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tsqlgen_schema_partial_total",
			Help: "Total number of inspections where at least one table failed column retrieval.",
		},
	)
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsqlgen_generations_total",
			Help: "Total number of SQL generation requests by outcome.",
		},
		[]string{"outcome"},
	)
	completionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsqlgen_completion_duration_seconds",
			Help:    "Completion service call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		schemaInspectionsTotal,
		schemaInspectionDurationSeconds,
		schemaPartialTotal,
		generationsTotal,
		completionDurationSeconds,
	)
}

// ObserveSchemaInspection records one inspection. outcome is "ok" or the
// diagnostic category.
func ObserveSchemaInspection(outcome string, partial bool, elapsed time.Duration) {
	schemaInspectionsTotal.WithLabelValues(outcome).Inc()
	schemaInspectionDurationSeconds.Observe(elapsed.Seconds())
	if partial {
		schemaPartialTotal.Inc()
	}
}

func ObserveGeneration(outcome string) {
	generationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveCompletion(provider string, elapsed time.Duration) {
	completionDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}
