package pipeline

import (
	"context"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/tracer"
)

// Command is an instruction returned by a stage to its driver.
type Command interface {
	command()
}

// Commands is an ordered list of commands.
type Commands []Command

// Spawn asks the driver to supervise a child worker.
type Spawn struct {
	Child tracer.ChildSpec
}

func (Spawn) command() {}

// Stage is one link in the per-stream pipeline.
type Stage interface {
	// Init runs once when the stream starts.
	Init(ctx context.Context, streamID string, rc *domain.RequestContext, opts domain.Options) (Commands, error)
	// Data is called for every body chunk; fin marks the last one.
	Data(ctx context.Context, streamID string, fin bool, data []byte) (Commands, error)
	// Info delivers out-of-band messages addressed to the stream.
	Info(ctx context.Context, streamID string, info any) (Commands, error)
	// Terminate runs once when the stream ends.
	Terminate(ctx context.Context, streamID string)
	// EarlyError is called when the stream fails before a response was
	// produced. It returns the status code to send.
	EarlyError(ctx context.Context, streamID string, status int, reason error) int
}

// Nop is a stage that does nothing. Embed it to implement only some methods.
type Nop struct{}

func (Nop) Init(context.Context, string, *domain.RequestContext, domain.Options) (Commands, error) {
	return nil, nil
}

func (Nop) Data(context.Context, string, bool, []byte) (Commands, error) { return nil, nil }

func (Nop) Info(context.Context, string, any) (Commands, error) { return nil, nil }

func (Nop) Terminate(context.Context, string) {}

func (Nop) EarlyError(_ context.Context, _ string, status int, _ error) int { return status }
