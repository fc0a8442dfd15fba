// Package metrics holds the Prometheus collectors describing comparison outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for plagcheck_comparisons_total.
const (
	OutcomeDetected = "plagiarism_detected"
	OutcomeFree     = "plagiarism_free"
	OutcomeFailed   = "failed"
)

// Metrics records comparison and extraction results. A nil *Metrics is valid and records nothing.
type Metrics struct {
	comparisons        *prometheus.CounterVec
	similarity         prometheus.Histogram
	extractionDuration *prometheus.HistogramVec
	extractionFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		comparisons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagcheck_comparisons_total",
				Help: "Document comparisons by outcome.",
			},
			[]string{"outcome"},
		),
		similarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plagcheck_similarity_ratio",
			Help:    "Similarity ratio of completed comparisons.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		extractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plagcheck_extraction_duration_seconds",
				Help:    "Time spent reducing a document to text.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		extractionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plagcheck_extraction_failures_total",
				Help: "Documents that could not be reduced to text.",
			},
			[]string{"format"},
		),
	}

	for _, c := range []prometheus.Collector{m.comparisons, m.similarity, m.extractionDuration, m.extractionFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveComparison records a completed comparison.
func (m *Metrics) ObserveComparison(ratio float64, plagiarized bool) {
	if m == nil {
		return
	}
	outcome := OutcomeFree
	if plagiarized {
		outcome = OutcomeDetected
	}
	m.comparisons.WithLabelValues(outcome).Inc()
	m.similarity.Observe(ratio)
}

// ComparisonFailed records a comparison that was aborted.
func (m *Metrics) ComparisonFailed() {
	if m == nil {
		return
	}
	m.comparisons.WithLabelValues(OutcomeFailed).Inc()
}

// ObserveExtraction records how long extracting one document took and whether it failed.
func (m *Metrics) ObserveExtraction(format string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.extractionDuration.WithLabelValues(format).Observe(d.Seconds())
	if err != nil {
		m.extractionFailures.WithLabelValues(format).Inc()
	}
}
