// Package metrics exposes Prometheus instruments for the template pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docfill_extractions_total",
			Help: "Total number of placeholder extractions by result",
		},
		[]string{"result"},
	)

	Renders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docfill_renders_total",
			Help: "Total number of template renders by result",
		},
		[]string{"result"},
	)

	ConversionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docfill_conversion_attempts_total",
			Help: "Converter invocations by attempt (primary, fallback) and result",
		},
		[]string{"attempt", "result"},
	)

	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docfill_conversion_duration_seconds",
			Help:    "Duration of complete conversion requests in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docfill_cleanup_failures_total",
			Help: "Temporary files that could not be removed after conversion",
		},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docfill_deliveries_total",
			Help: "Documents persisted by output format",
		},
		[]string{"format"},
	)
)

// Result returns the label value for err.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
