package instrument

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/ports"
	"github.com/google/uuid"
)

var (
	// ErrUnknownOwner is returned when enabling capture on an owner the hub did not spawn.
	ErrUnknownOwner = errors.New("owner is not a live process of this hub")
	// ErrAlreadyEnabled is returned when another receiver is attached to the owner.
	ErrAlreadyEnabled = errors.New("instrumentation already enabled for owner")
)

// Hub owns the set of live processes and implements ports.Instrumentation.
type Hub struct {
	mu       sync.RWMutex
	procs    map[string]*Process
	routines map[string]bool // traced subset when FlagAllRoutines is not set
	logger   *slog.Logger
}

// Option configures the Hub.
type Option func(*Hub)

// WithLogger configures a logger for the Hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithRoutines sets the routines traced when capture is enabled without
// FlagAllRoutines.
func WithRoutines(names ...string) Option {
	return func(h *Hub) {
		for _, n := range names {
			h.routines[n] = true
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		procs:    make(map[string]*Process),
		routines: make(map[string]bool),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ ports.Instrumentation = (*Hub)(nil)

// Spawn starts a new process. The process exits with the cancellation
// cause of ctx if it has not exited by the time ctx is done.
func (h *Hub) Spawn(ctx context.Context) *Process {
	p := newProcess(h, uuid.NewString())

	h.mu.Lock()
	h.procs[p.id] = p
	h.mu.Unlock()

	// stop is published under p.mu; the callback may already be running
	// when ctx is cancelled before Spawn.
	stop := context.AfterFunc(ctx, func() {
		p.Exit(context.Cause(ctx))
	})
	p.setStop(stop)
	return p
}

// Lookup returns a live process by ID.
func (h *Hub) Lookup(id string) (*Process, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.procs[id]
	return p, ok
}

// Len returns the number of live processes.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.procs)
}

func (h *Hub) process(owner domain.Owner) (*Process, bool) {
	if owner == nil {
		return nil, false
	}
	return h.Lookup(owner.ID())
}

func (h *Hub) forget(id string) {
	h.mu.Lock()
	delete(h.procs, id)
	h.mu.Unlock()
}

// Enable attaches receiver to owner with the given capture flags.
func (h *Hub) Enable(owner domain.Owner, receiver ports.Receiver, flags ports.Flags) error {
	p, ok := h.process(owner)
	if !ok {
		return ErrUnknownOwner
	}
	if err := p.attach(receiver, flags); err != nil {
		return err
	}
	h.logger.Debug("Instrumentation enabled",
		"owner", p.id,
		"receiver", receiver.ID(),
		"flags", flags.String(),
	)
	return nil
}

// Receiver returns the receiver attached to owner.
func (h *Hub) Receiver(owner domain.Owner) (ports.Receiver, bool) {
	p, ok := h.process(owner)
	if !ok {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recv, p.recv != nil
}

// Disable detaches receiver from owner. It is a no-op if a different
// receiver (or none) is attached.
func (h *Hub) Disable(owner domain.Owner, receiver ports.Receiver) {
	p, ok := h.process(owner)
	if !ok {
		return
	}
	if p.detach(receiver) {
		h.logger.Debug("Instrumentation disabled", "owner", p.id, "receiver", receiver.ID())
	}
}

func (h *Hub) traces(routine string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.routines[routine]
}
