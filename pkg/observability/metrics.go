// Package observability exposes the engine's Prometheus metrics. Collectors
// live on a private registry so embedding applications keep control of the
// default one.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for invocation metrics.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid_arguments"
	OutcomeUnknown   = "unknown_tool"
	OutcomeUpstream  = "upstream_failure"
	OutcomeRecovered = "panic_recovered"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive     prometheus.Gauge
	SessionsTotal      prometheus.Counter
	Invocations        *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	WidgetReads        *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apphost_sessions_active",
			Help: "Number of live sessions",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apphost_sessions_total",
			Help: "Total number of sessions minted",
		}),
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_invocations_total",
				Help: "Tool invocations by outcome",
			},
			[]string{"tool", "outcome"},
		),
		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "apphost_invocation_duration_seconds",
				Help: "Duration of tool handler executions",
			},
			[]string{"tool"},
		),
		WidgetReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apphost_widget_reads_total",
				Help: "Widget document reads by widget id",
			},
			[]string{"widget"},
		),
	}
	m.registry.MustRegister(
		m.SessionsActive,
		m.SessionsTotal,
		m.Invocations,
		m.InvocationDuration,
		m.WidgetReads,
	)
	return m
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
