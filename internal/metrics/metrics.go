// Package metrics provides Prometheus metrics for the redirector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the redirector.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	DecisionsTotal      *prometheus.CounterVec
	ExemptionsTotal     *prometheus.CounterVec
	MalformedHostsTotal prometheus.Counter
	DiagDroppedTotal    prometheus.Counter
	ConfigReloadsTotal  *prometheus.CounterVec

	BackendDuration  *prometheus.HistogramVec
	BackendResponses *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "https_redirect_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "listener"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "https_redirect_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "listener"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "https_redirect_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "https_redirect_decisions_total",
			Help: "Engine decisions by outcome and listener context.",
		}, []string{"outcome", "listener"}),

		ExemptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "https_redirect_exemptions_total",
			Help: "Requests exempted from redirection, by matching pattern.",
		}, []string{"pattern"}),

		MalformedHostsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "https_redirect_malformed_hosts_total",
			Help: "Host headers with an unterminated IPv6 literal.",
		}),

		DiagDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "https_redirect_diag_events_dropped_total",
			Help: "Diagnostic events dropped because the event buffer was full.",
		}),

		ConfigReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "https_redirect_config_reloads_total",
			Help: "Configuration reload attempts by result.",
		}, []string{"result"}),

		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "https_redirect_backend_request_duration_seconds",
			Help:    "Backend call latency in seconds for pass-through requests.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		BackendResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "https_redirect_backend_responses_total",
			Help: "Total backend responses by method and status code.",
		}, []string{"method", "status_code"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.DecisionsTotal,
		m.ExemptionsTotal,
		m.MalformedHostsTotal,
		m.DiagDroppedTotal,
		m.ConfigReloadsTotal,
		m.BackendDuration,
		m.BackendResponses,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}
