package tracer

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/aretw0/reqtrace/pkg/adapters/memory"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/aretw0/reqtrace/pkg/ports"
)

const (
	// DefaultShutdownGrace is how long a supervisor waits for a tracer to stop.
	DefaultShutdownGrace = 5 * time.Second
	// releaseTimeout bounds registry cleanup when a worker exits.
	releaseTimeout = 2 * time.Second
)

// ChildSpec asks the surrounding pipeline to supervise a worker.
type ChildSpec struct {
	Worker   *Worker
	Shutdown time.Duration
}

// Activation is the outcome of Guard.Activate.
type Activation struct {
	// Result is one of the Result* constants.
	Result string
	// Worker and Child are set only when Result is ResultTraced.
	Worker *Worker
	Child  *ChildSpec
}

// Tracing reports whether a tracer was started.
func (a Activation) Tracing() bool { return a.Worker != nil }

// Guard decides per stream whether to start a tracer and makes sure no
// owner is ever instrumented twice.
type Guard struct {
	instr    ports.Instrumentation
	registry ports.TraceRegistry
	grace    time.Duration
	hooks    Hooks
	logger   *slog.Logger
}

// GuardOption configures the Guard.
type GuardOption func(*Guard)

// WithRegistry sets the trace registry. Defaults to an in-memory registry.
func WithRegistry(reg ports.TraceRegistry) GuardOption {
	return func(g *Guard) {
		g.registry = reg
	}
}

// WithLogger configures a logger for the Guard and the workers it spawns.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks Hooks) GuardOption {
	return func(g *Guard) {
		g.hooks = hooks
	}
}

// WithShutdownGrace overrides the grace period requested for spawned workers.
func WithShutdownGrace(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.grace = d
	}
}

// NewGuard creates a Guard enabling capture through instr.
func NewGuard(instr ports.Instrumentation, opts ...GuardOption) *Guard {
	g := &Guard{
		instr:    instr,
		registry: memory.NewRegistry(),
		grace:    DefaultShutdownGrace,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the trace registry in use.
func (g *Guard) Registry() ports.TraceRegistry {
	return g.registry
}

// Activate runs once per stream. Every reason not to trace resolves to an
// Activation without a worker; nothing here is surfaced as an error.
func (g *Guard) Activate(ctx context.Context, streamID string, rc *domain.RequestContext, opts domain.Options) Activation {
	res := g.activate(ctx, streamID, rc, opts)
	g.hooks.activate(res.Result)
	return res
}

func (g *Guard) activate(ctx context.Context, streamID string, rc *domain.RequestContext, opts domain.Options) Activation {
	// 1. Tracing is opt-in: both options are required
	spec, ok := match.FromOptions(opts)
	if !ok {
		return Activation{Result: ResultNoConfig}
	}
	cb, ok := opts.Callback()
	if !ok {
		return Activation{Result: ResultNoConfig}
	}

	// 2. Match
	if !match.Evaluate(spec, streamID, rc, opts) {
		return Activation{Result: ResultNoMatch}
	}

	if rc == nil || rc.Owner == nil {
		return Activation{Result: ResultNoOwner}
	}
	owner := rc.Owner
	logger := g.logger.With("stream_id", streamID, "owner", owner.ID())

	// 3. Never attach a second tracer to an instrumented owner
	if _, attached := g.instr.Receiver(owner); attached {
		logger.Debug("Owner already instrumented, skipping tracer")
		return Activation{Result: ResultAlreadyTraced}
	}

	w := NewWorker(streamID, rc, opts, cb,
		WithWorkerLogger(g.logger),
		WithWorkerHooks(g.hooks),
	)
	w.cleanups = append(w.cleanups, func(error) { g.detach(owner, w) })

	claimed, err := g.registry.Claim(ctx, owner.ID(), w.ID())
	if err != nil {
		logger.Warn("Trace registry claim failed, not tracing", "err", err)
		return Activation{Result: ResultError}
	}
	if !claimed {
		logger.Debug("Owner already claimed by another tracer")
		return Activation{Result: ResultAlreadyTraced}
	}

	// 4. Enable capture, then start the worker
	if err := g.instr.Enable(owner, w, ports.FlagsAll); err != nil {
		logger.Warn("Enabling instrumentation failed, not tracing", "err", err)
		g.release(owner.ID(), w.ID())
		return Activation{Result: ResultError}
	}
	w.Start()
	logger.Info("Tracer started", "tracer", w.ID())

	return Activation{
		Result: ResultTraced,
		Worker: w,
		Child:  &ChildSpec{Worker: w, Shutdown: g.grace},
	}
}

// detach reverts the owner to "not instrumented". Only a worker's own exit
// calls it.
func (g *Guard) detach(owner domain.Owner, w *Worker) {
	g.instr.Disable(owner, w)
	g.release(owner.ID(), w.ID())
}

func (g *Guard) release(ownerID, workerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := g.registry.Release(ctx, ownerID, workerID); err != nil {
		g.logger.Warn("Failed to release trace claim (will expire via TTL if configured)",
			"owner", ownerID,
			"tracer", workerID,
			"err", err,
		)
	}
}
