package reqtrace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/reqtrace/internal/logging"
	reqhttp "github.com/aretw0/reqtrace/pkg/adapters/http"
	"github.com/aretw0/reqtrace/pkg/adapters/instrument"
	"github.com/aretw0/reqtrace/pkg/adapters/memory"
	"github.com/aretw0/reqtrace/pkg/callbacks"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/aretw0/reqtrace/pkg/observability"
	"github.com/aretw0/reqtrace/pkg/pipeline"
	"github.com/aretw0/reqtrace/pkg/ports"
	"github.com/aretw0/reqtrace/pkg/registry"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the reqtrace release.
const Version = "0.1.0"

// Profile is a named tracing configuration: a match spec and the callback
// receiving the events of matching streams.
type Profile struct {
	Name     string
	Spec     match.Spec
	Callback domain.Callback
}

// Tracer is the high-level entry point. It wires instrumentation, the
// activation guard, supervision and metrics together.
type Tracer struct {
	hub        *instrument.Hub
	guard      *tracer.Guard
	supervisor *tracer.Supervisor
	metrics    *observability.Metrics

	traces   ports.TraceRegistry
	locker   ports.DistributedLocker
	metricsR *prometheus.Registry
	profiles []Profile
	hooks    tracer.Hooks
	logger   *slog.Logger
}

// Option defines a functional option for configuring the Tracer.
type Option func(*Tracer)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// WithTraceRegistry replaces the in-memory owner registry, e.g. with the
// Redis one when several processes share owners.
func WithTraceRegistry(reg ports.TraceRegistry) Option {
	return func(t *Tracer) {
		t.traces = reg
	}
}

// WithLocker serializes admin controllers through locker.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(t *Tracer) {
		t.locker = locker
	}
}

// WithMetricsRegistry registers collectors on reg and serves it on /metrics.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(t *Tracer) {
		t.metricsR = reg
	}
}

// WithHooks registers additional observability hooks.
func WithHooks(hooks tracer.Hooks) Option {
	return func(t *Tracer) {
		t.hooks = hooks
	}
}

// WithProfile adds a tracing profile. Profiles are tried in order and the
// first matching one traces the stream.
func WithProfile(p Profile) Option {
	return func(t *Tracer) {
		t.profiles = append(t.profiles, p)
	}
}

// New initializes a Tracer.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.traces == nil {
		t.traces = memory.NewRegistry()
	}
	if t.metricsR == nil {
		t.metricsR = prometheus.NewRegistry()
	}
	t.metrics = observability.NewMetrics(t.metricsR)

	t.hub = instrument.NewHub(instrument.WithLogger(t.logger))

	t.guard = tracer.NewGuard(t.hub,
		tracer.WithRegistry(t.traces),
		tracer.WithLogger(t.logger),
		tracer.WithHooks(tracer.ChainHooks(t.metrics.Hooks(), t.hooks)),
	)
	t.supervisor = tracer.NewSupervisor(tracer.WithSupervisorLogger(t.logger))
	return t
}

// Hub returns the instrumentation hub owning per-request processes.
func (t *Tracer) Hub() *instrument.Hub { return t.hub }

// Guard returns the activation guard.
func (t *Tracer) Guard() *tracer.Guard { return t.guard }

// Supervisor returns the supervisor tracking running tracers.
func (t *Tracer) Supervisor() *tracer.Supervisor { return t.supervisor }

// Metrics returns the Prometheus collectors.
func (t *Tracer) Metrics() *observability.Metrics { return t.metrics }

// Profiles returns the configured profiles.
func (t *Tracer) Profiles() []Profile { return t.profiles }

// Activate runs the guard for one stream of a custom pipeline and
// supervises the tracer it starts.
func (t *Tracer) Activate(ctx context.Context, streamID string, rc *domain.RequestContext, opts domain.Options) tracer.Activation {
	act := t.guard.Activate(ctx, streamID, rc, opts)
	if act.Child != nil {
		t.supervisor.Supervise(*act.Child)
	}
	return act
}

// Stage builds the tracing stage in front of next. With profiles, one
// TracerStage per profile is chained; without, the stream options decide.
func (t *Tracer) Stage(next pipeline.Stage) pipeline.Stage {
	if next == nil {
		next = pipeline.Nop{}
	}
	if len(t.profiles) == 0 {
		return pipeline.NewTracerStage(t.guard, next)
	}
	stage := next
	for i := len(t.profiles) - 1; i >= 0; i-- {
		p := t.profiles[i]
		stage = &pipeline.TracerStage{
			Next:  stage,
			Guard: t.guard,
			Options: domain.Options{
				domain.KeyMatchSpec: p.Spec,
				domain.KeyCallback:  p.Callback,
			},
		}
	}
	return stage
}

// Middleware returns the HTTP middleware driving Stage(next).
func (t *Tracer) Middleware(next pipeline.Stage, opts ...reqhttp.MiddlewareOption) *reqhttp.Middleware {
	opts = append([]reqhttp.MiddlewareOption{
		reqhttp.WithSupervisor(t.supervisor),
		reqhttp.WithLogger(t.logger),
	}, opts...)
	return reqhttp.NewMiddleware(t.hub, t.Stage(next), opts...)
}

// Wrap instruments h: every request gets a chi request ID, runs as an
// owner process and is traced when a profile matches.
func (t *Tracer) Wrap(h http.Handler) http.Handler {
	return chi.Chain(middleware.RequestID, t.Middleware(nil).Handler).Handler(h)
}

// AdminHandler serves the control plane and /metrics.
func (t *Tracer) AdminHandler() http.Handler {
	opts := []reqhttp.ServerOption{
		reqhttp.WithGatherer(t.metricsR),
		reqhttp.WithServerLogger(t.logger),
	}
	if t.locker != nil {
		opts = append(opts, reqhttp.WithLocker(t.locker, reqhttp.DefaultControlTTL))
	}
	return reqhttp.NewHandler(t.supervisor, opts...)
}

// Shutdown terminates every running tracer, honoring each grace period.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.supervisor.Shutdown(ctx)
}

// DefaultRegistry returns a registry with the built-in callbacks:
//
//   - "log": logs every event through logger (args: level)
//   - "jsonl": writes events as JSON lines to out
//   - "recorder": keeps finished streams in memory
func DefaultRegistry(logger *slog.Logger, out io.Writer) *registry.Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	reg := registry.NewRegistry()
	reg.RegisterCallback("log", func(args map[string]any) (domain.Callback, error) {
		level := slog.LevelInfo
		if s, ok := args["level"].(string); ok {
			l, err := logging.ParseLevel(s)
			if err != nil {
				return nil, err
			}
			level = l
		}
		return callbacks.NewLogger(logger, level), nil
	})
	reg.RegisterCallback("jsonl", func(args map[string]any) (domain.Callback, error) {
		if len(args) > 0 {
			return nil, fmt.Errorf("jsonl takes no arguments")
		}
		return callbacks.NewJSONLines(out), nil
	})
	reg.RegisterCallback("recorder", func(map[string]any) (domain.Callback, error) {
		return callbacks.NewRecorder(), nil
	})
	return reg
}
