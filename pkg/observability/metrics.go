package observability

import (
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the tracer collectors.
type Metrics struct {
	Activations *prometheus.CounterVec
	Events      *prometheus.CounterVec
	Strays      prometheus.Counter
	Exits       *prometheus.CounterVec
	Active      prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqtrace_activations_total",
				Help: "Activation decisions by result",
			},
			[]string{"result"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqtrace_events_total",
				Help: "Trace events delivered to callbacks",
			},
			[]string{"kind"},
		),
		Strays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reqtrace_stray_messages_total",
			Help: "Unrecognized messages dropped by tracers",
		}),
		Exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reqtrace_worker_exits_total",
				Help: "Tracer exits by outcome",
			},
			[]string{"outcome"},
		),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reqtrace_workers_active",
			Help: "Tracers currently running",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Activations, m.Events, m.Strays, m.Exits, m.Active)
	}
	return m
}

// Hooks returns tracer hooks recording into m.
func (m *Metrics) Hooks() tracer.Hooks {
	return tracer.Hooks{
		OnActivate: func(result string) {
			m.Activations.WithLabelValues(result).Inc()
			if result == tracer.ResultTraced {
				m.Active.Inc()
			}
		},
		OnEvent: func(_ *tracer.Worker, ev domain.TraceEvent) {
			m.Events.WithLabelValues(string(ev.Kind)).Inc()
		},
		OnStray: func(*tracer.Worker, any) {
			m.Strays.Inc()
		},
		OnExit: func(_ *tracer.Worker, reason error) {
			m.Active.Dec()
			m.Exits.WithLabelValues(Outcome(reason)).Inc()
		},
	}
}

// Outcome classifies an exit reason for the exits counter.
func Outcome(reason error) string {
	switch {
	case domain.IsNormal(reason):
		return "normal"
	case isCallbackError(reason):
		return "callback_error"
	default:
		return "abnormal"
	}
}
