// Package metrics exposes pipeline counters through a private Prometheus
// registry. A nil *Pipeline records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Strategy attempt outcomes.
const (
	OutcomeRows    = "rows"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Pipeline holds the extraction pipeline's collectors.
type Pipeline struct {
	registry *prometheus.Registry

	attempts *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	resolves *prometheus.CounterVec
	uploads  *prometheus.CounterVec
}

// New creates and registers the pipeline collectors.
func New() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nidwatch",
			Name:      "strategy_attempts_total",
			Help:      "Extraction strategy attempts by outcome.",
		}, []string{"strategy", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nidwatch",
			Name:      "strategy_rows_total",
			Help:      "Normalized rows produced per strategy.",
		}, []string{"strategy"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nidwatch",
			Name:      "strategy_duration_seconds",
			Help:      "Wall-clock time spent in each strategy.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120, 300},
		}, []string{"strategy"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nidwatch",
			Name:      "resolves_total",
			Help:      "Resolved files by the source that produced the table.",
		}, []string{"source"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nidwatch",
			Name:      "uploads_total",
			Help:      "Uploads by status.",
		}, []string{"status"}),
	}
	p.registry.MustRegister(p.attempts, p.rows, p.duration, p.resolves, p.uploads)
	return p
}

// ObserveStrategy records one strategy attempt.
func (p *Pipeline) ObserveStrategy(strategy, outcome string, rows int, took time.Duration) {
	if p == nil {
		return
	}
	p.attempts.WithLabelValues(strategy, outcome).Inc()
	p.rows.WithLabelValues(strategy).Add(float64(rows))
	p.duration.WithLabelValues(strategy).Observe(took.Seconds())
}

// ObserveResolve records which source produced a resolved table.
func (p *Pipeline) ObserveResolve(source string) {
	if p == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	p.resolves.WithLabelValues(source).Inc()
}

// ObserveUpload records an upload outcome.
func (p *Pipeline) ObserveUpload(status string) {
	if p == nil {
		return
	}
	p.uploads.WithLabelValues(status).Inc()
}

// Registry returns the underlying registry.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	if p == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
