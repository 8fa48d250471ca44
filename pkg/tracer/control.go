package tracer

import (
	"context"
	"errors"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// Command is a control-plane instruction.
type Command int

const (
	CmdSuspend Command = iota + 1
	CmdResume
	CmdTerminate
	CmdMigrateState
	CmdInspect
)

func (c Command) String() string {
	switch c {
	case CmdSuspend:
		return "suspend"
	case CmdResume:
		return "resume"
	case CmdTerminate:
		return "terminate"
	case CmdMigrateState:
		return "migrate_state"
	case CmdInspect:
		return "inspect"
	default:
		return "unknown"
	}
}

// Snapshot is the (Callback, State) continuation handed to a controller.
// State must be treated as opaque and read-only.
type Snapshot struct {
	Callback  domain.Callback
	State     domain.State
	Phase     Phase
	Processed uint64
	Pending   int
}

type request struct {
	ctx    context.Context
	cmd    Command
	reason error
	extra  any
	reply  chan response
}

// abandoned reports whether the caller gave up before the request was
// served. Such requests are skipped.
func (r request) abandoned() bool {
	return r.ctx != nil && r.ctx.Err() != nil
}

type response struct {
	snapshot Snapshot
	err      error
}

func (w *Worker) snapshot(st domain.State) Snapshot {
	return Snapshot{
		Callback:  w.callback,
		State:     st,
		Phase:     w.Phase(),
		Processed: w.Processed(),
		Pending:   w.mailbox.len(),
	}
}

// handleControl serves a control request popped while RUNNING.
func (w *Worker) handleControl(req request, st domain.State) (domain.State, *stopSignal) {
	if req.abandoned() {
		return st, nil
	}
	switch req.cmd {
	case CmdSuspend:
		w.setPhase(PhaseSuspended)
		req.reply <- response{snapshot: w.snapshot(st)}
		w.logger.Debug("Tracer suspended")
		return w.suspended(st)

	case CmdTerminate:
		req.reply <- response{snapshot: w.snapshot(st)}
		return st, &stopSignal{reason: req.reason}

	case CmdInspect, CmdMigrateState, CmdResume:
		// Resume on a running worker is an acknowledged no-op; migration
		// returns the pair unchanged.
		req.reply <- response{snapshot: w.snapshot(st)}
		return st, nil

	default:
		req.reply <- response{err: errors.New("unknown control command")}
		return st, nil
	}
}

func isRequest(msg any) bool {
	_, ok := msg.(request)
	return ok
}

func isOwnerExit(msg any) bool {
	_, ok := msg.(ownerExit)
	return ok
}

// suspended is the nested exchange. Only control requests are taken from
// the mailbox; events stay queued in order until RUNNING resumes. A queued
// owner exit resumes RUNNING so the events ahead of it are folded and the
// worker terminates.
func (w *Worker) suspended(st domain.State) (domain.State, *stopSignal) {
	for {
		msg, ok := w.mailbox.take(isRequest)
		if !ok {
			if w.mailbox.has(isOwnerExit) {
				w.setPhase(PhaseRunning)
				w.logger.Debug("Owner exited while suspended")
				return st, nil
			}
			<-w.mailbox.ready()
			continue
		}

		req := msg.(request)
		if req.abandoned() {
			continue
		}
		switch req.cmd {
		case CmdResume:
			w.setPhase(PhaseRunning)
			req.reply <- response{snapshot: w.snapshot(st)}
			w.logger.Debug("Tracer resumed")
			return st, nil

		case CmdTerminate:
			req.reply <- response{snapshot: w.snapshot(st)}
			return st, &stopSignal{reason: req.reason}

		case CmdMigrateState:
			// No conversion: the pair is returned as is and RUNNING resumes.
			w.setPhase(PhaseRunning)
			req.reply <- response{snapshot: w.snapshot(st)}
			w.logger.Debug("Tracer state migration", "extra", req.extra)
			return st, nil

		case CmdInspect, CmdSuspend:
			req.reply <- response{snapshot: w.snapshot(st)}

		default:
			req.reply <- response{err: errors.New("unknown control command")}
		}
	}
}

// call performs one synchronous request/reply exchange. The request is
// queued behind every message already in the mailbox.
func (w *Worker) call(ctx context.Context, req request) (Snapshot, error) {
	req.ctx = ctx
	req.reply = make(chan response, 1)

	if !w.mailbox.push(req) {
		return Snapshot{}, ErrWorkerExited
	}

	// Replies are buffered and always sent before the worker can exit.
	select {
	case resp := <-req.reply:
		return resp.snapshot, resp.err
	case <-w.done:
		select {
		case resp := <-req.reply:
			return resp.snapshot, resp.err
		default:
			return Snapshot{}, ErrWorkerExited
		}
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Suspend enters the nested control exchange and returns the current
// (Callback, State). Events keep queuing until Resume.
func (w *Worker) Suspend(ctx context.Context) (Snapshot, error) {
	return w.call(ctx, request{cmd: CmdSuspend})
}

// Resume leaves the control exchange with State unchanged.
func (w *Worker) Resume(ctx context.Context) error {
	_, err := w.call(ctx, request{cmd: CmdResume})
	return err
}

// Inspect returns the current (Callback, State) without changing phase.
func (w *Worker) Inspect(ctx context.Context) (Snapshot, error) {
	return w.call(ctx, request{cmd: CmdInspect})
}

// MigrateState asks for a state migration. No conversion is performed:
// the pair is returned unchanged and the worker resumes RUNNING. Events
// queued during the exchange are folded afterwards through the same callback.
func (w *Worker) MigrateState(ctx context.Context, extra any) (Snapshot, error) {
	return w.call(ctx, request{cmd: CmdMigrateState, extra: extra})
}

// Terminate stops the worker with reason and waits for it to exit.
// A nil reason means a normal stop (domain.ErrNormal).
func (w *Worker) Terminate(ctx context.Context, reason error) error {
	if reason == nil {
		reason = domain.ErrNormal
	}
	if _, err := w.call(ctx, request{cmd: CmdTerminate, reason: reason}); err != nil {
		if errors.Is(err, ErrWorkerExited) {
			return nil
		}
		return err
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
