package tracer

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/ports"
	"github.com/google/uuid"
)

// Phase is the lifecycle phase of a Worker.
type Phase int32

const (
	PhaseInit Phase = iota
	PhaseRunning
	// PhaseSuspended is RUNNING inside a controller exchange.
	PhaseSuspended
	PhaseTerminating
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseRunning:
		return "running"
	case PhaseSuspended:
		return "suspended"
	case PhaseTerminating:
		return "terminating"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ownerExit is queued in the mailbox when the linked owner exits.
type ownerExit struct {
	reason error
}

// Worker owns one stream's callback state and runs its event loop.
// It implements ports.Receiver (instrumentation pushes into it) and
// domain.Owner (a supervisor can link to it).
type Worker struct {
	id       string
	streamID string
	rc       *domain.RequestContext
	opts     domain.Options
	owner    domain.Owner
	callback domain.Callback

	mailbox *mailbox
	done    chan struct{}
	reason  error

	phase     atomic.Int32
	processed atomic.Uint64
	startedAt time.Time

	cleanups []func(reason error)
	hooks    Hooks
	logger   *slog.Logger
}

var (
	_ ports.Receiver = (*Worker)(nil)
	_ domain.Owner   = (*Worker)(nil)
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger configures the worker logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithWorkerHooks configures observability hooks.
func WithWorkerHooks(hooks Hooks) WorkerOption {
	return func(w *Worker) {
		w.hooks = hooks
	}
}

// OnExit registers fn to run when the worker exits, before Done closes.
func OnExit(fn func(reason error)) WorkerOption {
	return func(w *Worker) {
		w.cleanups = append(w.cleanups, fn)
	}
}

// NewWorker creates a worker for a stream owned by rc.Owner. The worker does
// not run until Start is called, but it already accepts messages so nothing
// captured between Enable and Start is lost.
func NewWorker(streamID string, rc *domain.RequestContext, opts domain.Options, cb domain.Callback, options ...WorkerOption) *Worker {
	w := &Worker{
		id:       uuid.NewString(),
		streamID: streamID,
		rc:       rc,
		opts:     opts,
		callback: cb,
		mailbox:  newMailbox(),
		done:     make(chan struct{}),
		logger:   logging.NewNop(),
	}
	if rc != nil {
		w.owner = rc.Owner
	}
	for _, opt := range options {
		opt(w)
	}
	w.logger = w.logger.With("tracer", w.id, "stream_id", streamID)
	return w
}

// ID returns the worker identity.
func (w *Worker) ID() string { return w.id }

// StreamID returns the traced stream.
func (w *Worker) StreamID() string { return w.streamID }

// Owner returns the linked owner.
func (w *Worker) Owner() domain.Owner { return w.owner }

// StartedAt returns when the worker was created.
func (w *Worker) StartedAt() time.Time { return w.startedAt }

// Phase returns the current lifecycle phase.
func (w *Worker) Phase() Phase { return Phase(w.phase.Load()) }

// Processed returns the number of events folded so far.
func (w *Worker) Processed() uint64 { return w.processed.Load() }

// Pending returns the number of queued, unprocessed messages.
func (w *Worker) Pending() int { return w.mailbox.len() }

// Done is closed once the worker has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err returns the exit reason, or nil while the worker is alive.
func (w *Worker) Err() error {
	select {
	case <-w.done:
		return w.reason
	default:
		return nil
	}
}

// Send queues a message. Trace events are folded through the callback;
// anything else is logged as stray. Messages sent after exit are dropped.
func (w *Worker) Send(msg any) {
	w.mailbox.push(msg)
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	w.startedAt = time.Now()
	go w.run()
}

func (w *Worker) setPhase(p Phase) {
	w.phase.Store(int32(p))
}

func (w *Worker) run() {
	reason := w.loop()
	w.exit(reason)
}

// watchOwner turns owner exit into an ordinary mailbox message so it is
// handled after every event queued before it.
func (w *Worker) watchOwner() {
	if w.owner == nil {
		return
	}
	select {
	case <-w.owner.Done():
		reason := w.owner.Err()
		if reason == nil {
			reason = domain.ErrNormal
		}
		w.mailbox.push(ownerExit{reason: reason})
	case <-w.done:
	}
}

func (w *Worker) loop() error {
	go w.watchOwner()

	// INIT
	var st domain.State
	if err := w.invoke("init", func() (err error) {
		st, err = w.callback.OnInit(w.streamID, w.rc, w.opts)
		return err
	}); err != nil {
		return err
	}
	w.setPhase(PhaseRunning)
	w.logger.Debug("Tracer running")

	// RUNNING
	for {
		msg, ok := w.mailbox.pop()
		if !ok {
			<-w.mailbox.ready()
			continue
		}

		var (
			stop *stopSignal
			err  error
		)
		st, stop, err = w.handleMessage(msg, st)
		if err != nil {
			return err
		}
		if stop != nil {
			return w.terminate(st, stop.reason)
		}
	}
}

// stopSignal ends RUNNING with the given exit reason.
type stopSignal struct {
	reason error
}

// handleMessage processes a single mailbox message.
func (w *Worker) handleMessage(msg any, st domain.State) (domain.State, *stopSignal, error) {
	switch m := msg.(type) {
	case domain.TraceEvent:
		err := w.invoke("event", func() (err error) {
			st, err = w.callback.OnEvent(m, st)
			return err
		})
		if err != nil {
			return st, nil, err
		}
		w.processed.Add(1)
		w.hooks.event(w, m)
		return st, nil, nil

	case ownerExit:
		w.logger.Debug("Owner exited", "reason", m.reason)
		return st, &stopSignal{reason: m.reason}, nil

	case request:
		next, stop := w.handleControl(m, st)
		return next, stop, nil

	default:
		w.logger.Warn("Tracer received stray message", "msg", fmt.Sprintf("%v", msg), "type", fmt.Sprintf("%T", msg))
		w.hooks.stray(w, msg)
		return st, nil, nil
	}
}

// terminate runs OnTerminate exactly once and yields the exit reason.
func (w *Worker) terminate(st domain.State, reason error) error {
	w.setPhase(PhaseTerminating)
	if err := w.invoke("terminate", func() error {
		w.callback.OnTerminate(st)
		return nil
	}); err != nil {
		return err
	}
	return reason
}

// invoke runs a callback operation, turning errors and panics into a
// *CallbackError so a failing callback only ends this worker.
func (w *Worker) invoke(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &CallbackError{Op: op, Err: err}
	}
	return nil
}

func (w *Worker) exit(reason error) {
	dropped := w.mailbox.close()
	for _, fn := range w.cleanups {
		fn(reason)
	}

	w.reason = reason
	w.setPhase(PhaseTerminated)
	close(w.done)

	if domain.IsNormal(reason) {
		w.logger.Debug("Tracer exited", "reason", reason, "processed", w.Processed(), "dropped", dropped)
	} else {
		w.logger.Warn("Tracer exited abnormally", "reason", reason, "processed", w.Processed(), "dropped", dropped)
	}
	w.hooks.exit(w, reason)
}
