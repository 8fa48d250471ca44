package tracer

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown is the reason given to workers stopped by a Supervisor.
	ErrShutdown = errors.New("shutdown")
	// ErrWorkerExited is returned by control requests sent to a terminated worker.
	ErrWorkerExited = errors.New("tracer worker exited")
)

// CallbackError is the exit reason of a worker whose callback failed.
type CallbackError struct {
	// Op is the failing operation: "init", "event" or "terminate".
	Op  string
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("tracer callback %s failed: %v", e.Op, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
