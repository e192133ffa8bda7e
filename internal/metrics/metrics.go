// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podflow",
		Subsystem: "validation",
		Name:      "deliveries_total",
		Help:      "Delivery validations by client and overall status.",
	}, []string{"client", "status"})

	validationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "podflow",
		Subsystem: "validation",
		Name:      "duration_seconds",
		Help:      "Time spent validating one delivery.",
		Buckets:   prometheus.DefBuckets,
	})

	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podflow",
		Subsystem: "classifier",
		Name:      "documents_total",
		Help:      "Document classifications by detected type.",
	}, []string{"type"})

	ocrDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "podflow",
		Subsystem: "ocr",
		Name:      "duration_seconds",
		Help:      "Time spent extracting text from one document image.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
)

// ObserveValidation records one completed delivery validation.
func ObserveValidation(client, status string, elapsed time.Duration) {
	validationsTotal.WithLabelValues(client, status).Inc()
	validationDuration.Observe(elapsed.Seconds())
}

// ObserveClassification records one document classification outcome.
func ObserveClassification(detectedType string) {
	classificationsTotal.WithLabelValues(detectedType).Inc()
}

// ObserveOCR records one OCR extraction.
func ObserveOCR(elapsed time.Duration) {
	ocrDuration.Observe(elapsed.Seconds())
}
