package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the review server.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	intakeRuns      prometheus.Counter
	intakeFallbacks prometheus.Counter
	packSubmissions *prometheus.CounterVec
}

// NewMetrics creates a metrics set on its own registry so tests don't
// collide on the global one.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ruleforge_http_requests_total",
			Help: "HTTP requests handled, by method, route, and status code.",
		}, []string{"method", "route", "code"}),
		intakeRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "ruleforge_intake_runs_total",
			Help: "Extraction intake runs started.",
		}),
		intakeFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "ruleforge_intake_fallbacks_total",
			Help: "Intake runs that degraded to the offline fallback catalog.",
		}),
		packSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ruleforge_pack_submissions_total",
			Help: "Pack submissions, by outcome.",
		}, []string{"outcome"}),
	}
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// FallbackHook returns a callback suitable for the intake service's
// fallback hook.
func (m *Metrics) FallbackHook() func() {
	return m.intakeFallbacks.Inc
}
