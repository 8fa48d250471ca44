package instrument

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/ports"
)

// Process is an instrumented owner. It implements domain.Owner.
// Emission is serialized per process, which gives its events a total order.
type Process struct {
	id  string
	hub *Hub

	done   chan struct{}
	once   sync.Once
	reason error

	mu     sync.Mutex
	stop   func() bool
	exited bool
	seq    uint64
	recv  ports.Receiver
	flags ports.Flags
}

func newProcess(h *Hub, id string) *Process {
	return &Process{
		id:   id,
		hub:  h,
		done: make(chan struct{}),
	}
}

var _ domain.Owner = (*Process)(nil)

// ID returns the process identity.
func (p *Process) ID() string { return p.id }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the exit reason, or nil while the process is alive.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.reason
	default:
		return nil
	}
}

// Exit terminates the process with reason. A nil reason is a normal exit.
// Only the first call has an effect.
func (p *Process) Exit(reason error) {
	p.once.Do(func() {
		if reason == nil {
			reason = domain.ErrNormal
		}
		p.mu.Lock()
		stop := p.stop
		p.exited = true
		p.mu.Unlock()
		if stop != nil {
			stop()
		}

		// The exit event is emitted before Done closes so tracers see it
		// ahead of the owner exit notification.
		p.emit(domain.EventExit, ports.FlagProcs, "", reason.Error())

		p.reason = reason
		close(p.done)
		p.hub.forget(p.id)
	})
}

// setStop records the context release func. If the process already
// exited, stop is released right away.
func (p *Process) setStop(stop func() bool) {
	p.mu.Lock()
	exited := p.exited
	if !exited {
		p.stop = stop
	}
	p.mu.Unlock()
	if exited {
		stop()
	}
}

// Call records entry into routine.
func (p *Process) Call(routine string, args any) {
	if p.routineTraced(routine) {
		p.emit(domain.EventCall, ports.FlagCall, routine, args)
	}
}

// Return records the result of routine.
func (p *Process) Return(routine string, result any) {
	if p.routineTraced(routine) {
		p.emit(domain.EventReturn, ports.FlagReturn, routine, result)
	}
}

// Send records a message sent to peer.
func (p *Process) Send(peer string, msg any) {
	p.emit(domain.EventSend, ports.FlagSend, peer, msg)
}

// Receive records a message received from peer.
func (p *Process) Receive(peer string, msg any) {
	p.emit(domain.EventReceive, ports.FlagReceive, peer, msg)
}

// Spawn starts a child process and records the spawn.
func (p *Process) Spawn(ctx context.Context) *Process {
	child := p.hub.Spawn(ctx)
	p.emit(domain.EventSpawn, ports.FlagProcs, child.id, nil)
	return child
}

// Trace wraps fn with call and return events for routine.
func (p *Process) Trace(routine string, args any, fn func() (any, error)) (any, error) {
	p.Call(routine, args)
	res, err := fn()
	if err != nil {
		p.Return(routine, err)
	} else {
		p.Return(routine, res)
	}
	return res, err
}

func (p *Process) routineTraced(routine string) bool {
	p.mu.Lock()
	all := p.flags.Has(ports.FlagAllRoutines)
	enabled := p.recv != nil
	p.mu.Unlock()
	return enabled && (all || p.hub.traces(routine))
}

func (p *Process) emit(kind domain.EventKind, flag ports.Flags, routine string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recv == nil || !p.flags.Has(flag) {
		return
	}

	now := time.Now()
	if !p.flags.Has(ports.FlagMonotonic) {
		now = now.Round(0) // strip the monotonic reading
	}
	p.seq++
	p.recv.Send(domain.TraceEvent{
		Kind:      kind,
		Owner:     p.id,
		Seq:       p.seq,
		Timestamp: now,
		Routine:   routine,
		Payload:   payload,
	})
}

func (p *Process) attach(recv ports.Receiver, flags ports.Flags) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.done:
		return ErrUnknownOwner
	default:
	}
	if p.recv != nil && p.recv.ID() != recv.ID() {
		return ErrAlreadyEnabled
	}
	p.recv = recv
	p.flags = flags
	return nil
}

func (p *Process) detach(recv ports.Receiver) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.recv == nil || p.recv.ID() != recv.ID() {
		return false
	}
	p.recv = nil
	p.flags = 0
	return true
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Process) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the process carried by ctx, if any.
func FromContext(ctx context.Context) (*Process, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Process)
	return p, ok
}
