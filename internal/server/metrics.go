package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/insightloom/internal/analysis"
)

// metrics lives on its own registry so several servers (and tests) can
// coexist in one process.
type metrics struct {
	reg      *prometheus.Registry
	runs     *prometheus.CounterVec
	insights *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insightloom",
			Name:      "runs_total",
			Help:      "Pipeline requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insightloom",
			Name:      "insights_total",
			Help:      "Insights produced by category.",
		}, []string{"category"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insightloom",
			Name:      "run_duration_seconds",
			Help:      "Pipeline time per request, excluding body decoding.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"endpoint"}),
	}
	m.reg.MustRegister(m.runs, m.insights, m.duration)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *metrics) observe(endpoint, outcome string, seconds float64) {
	m.runs.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(seconds)
}

func (m *metrics) countInsights(counts map[analysis.Category]int) {
	for c, n := range counts {
		m.insights.WithLabelValues(string(c)).Add(float64(n))
	}
}
