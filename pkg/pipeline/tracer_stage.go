package pipeline

import (
	"context"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/tracer"
)

// Activator decides whether a stream is traced. *tracer.Guard implements it.
type Activator interface {
	Activate(ctx context.Context, streamID string, rc *domain.RequestContext, opts domain.Options) tracer.Activation
}

// TracerStage activates tracing on Init and otherwise forwards everything
// to Next untouched.
type TracerStage struct {
	Next  Stage
	Guard Activator
	// Options, when set, are laid over the stream options given to the
	// guard. Next always sees the stream options unchanged.
	Options domain.Options
}

// NewTracerStage wraps next. A nil next behaves like Nop.
func NewTracerStage(guard Activator, next Stage) *TracerStage {
	if next == nil {
		next = Nop{}
	}
	return &TracerStage{Next: next, Guard: guard}
}

type tracedKey struct{}

// Traced reports whether a TracerStage earlier in the chain started a
// tracer for the stream being initialized with ctx.
func Traced(ctx context.Context) bool {
	traced, _ := ctx.Value(tracedKey{}).(bool)
	return traced
}

// Init consults the guard before initializing Next. When a tracer was
// started its Spawn command comes first, even if Next fails, so the worker
// is always supervised. A stream already traced by an earlier stage skips
// the guard.
func (s *TracerStage) Init(ctx context.Context, streamID string, rc *domain.RequestContext, opts domain.Options) (Commands, error) {
	if Traced(ctx) {
		return s.Next.Init(ctx, streamID, rc, opts)
	}
	act := s.Guard.Activate(ctx, streamID, rc, s.activation(opts))
	if act.Tracing() {
		ctx = context.WithValue(ctx, tracedKey{}, true)
	}
	cmds, err := s.Next.Init(ctx, streamID, rc, opts)
	if !act.Tracing() || act.Child == nil {
		return cmds, err
	}
	out := make(Commands, 0, len(cmds)+1)
	out = append(out, Spawn{Child: *act.Child})
	return append(out, cmds...), err
}

func (s *TracerStage) activation(opts domain.Options) domain.Options {
	if len(s.Options) == 0 {
		return opts
	}
	out := make(domain.Options, len(opts)+len(s.Options))
	for k, v := range opts {
		out[k] = v
	}
	for k, v := range s.Options {
		out[k] = v
	}
	return out
}

func (s *TracerStage) Data(ctx context.Context, streamID string, fin bool, data []byte) (Commands, error) {
	return s.Next.Data(ctx, streamID, fin, data)
}

func (s *TracerStage) Info(ctx context.Context, streamID string, info any) (Commands, error) {
	return s.Next.Info(ctx, streamID, info)
}

func (s *TracerStage) Terminate(ctx context.Context, streamID string) {
	s.Next.Terminate(ctx, streamID)
}

func (s *TracerStage) EarlyError(ctx context.Context, streamID string, status int, reason error) int {
	return s.Next.EarlyError(ctx, streamID, status, reason)
}
