// Package metrics exposes Prometheus instrumentation for the moderation
// server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the moderation collectors.
type Metrics struct {
	Requests    *prometheus.CounterVec
	Flags       *prometheus.CounterVec
	Verdicts    *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	BatchSize   prometheus.Histogram
	LexiconSize prometheus.Gauge

	gatherer prometheus.Gatherer
}

// Registry registers collectors and gathers them for /metrics.
// *prometheus.Registry satisfies it.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// New registers the collectors on reg. Each server instance should pass
// its own registry; tests use prometheus.NewRegistry().
func New(reg Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_requests_total",
			Help: "Moderation requests by operation",
		}, []string{"operation"}),
		Flags: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_flags_total",
			Help: "Flagged categories across moderated texts",
		}, []string{"category"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moderation_verdicts_total",
			Help: "Verdicts returned to callers",
		}, []string{"verdict"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moderation_duration_seconds",
			Help:    "Time to serve a moderation operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"operation"}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "moderation_batch_size",
			Help:    "Number of texts per batch request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		LexiconSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "moderation_lexicon_size",
			Help: "Current number of lexicon entries",
		}),
		gatherer: reg,
	}
}

// ObserveRequest counts one operation and records how long it took.
func (m *Metrics) ObserveRequest(operation string, elapsed time.Duration) {
	m.Requests.WithLabelValues(operation).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveResult counts the flagged categories and the verdict of one text.
func (m *Metrics) ObserveResult(categories []string, verdict string) {
	for _, c := range categories {
		m.Flags.WithLabelValues(c).Inc()
	}
	m.Verdicts.WithLabelValues(verdict).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
