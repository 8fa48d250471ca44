package ports

import (
	"strings"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// Flags selects what the instrumentation subsystem captures.
type Flags uint16

const (
	FlagCall Flags = 1 << iota
	FlagReturn
	FlagSend
	FlagReceive
	// FlagProcs captures process lifecycle (spawn, exit, link, unlink).
	FlagProcs
	// FlagMonotonic stamps events with a monotonic clock reading.
	FlagMonotonic
	// FlagAllRoutines covers every loaded routine rather than a subset.
	FlagAllRoutines
)

// FlagsAll is the capture set installed by the activation guard.
const FlagsAll = FlagCall | FlagReturn | FlagSend | FlagReceive | FlagProcs | FlagMonotonic | FlagAllRoutines

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

func (f Flags) String() string {
	names := []string{"call", "return", "send", "receive", "procs", "monotonic", "all"}
	var out []string
	for i, name := range names {
		if f&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return strings.Join(out, "|")
}

// Receiver accepts messages pushed by the instrumentation subsystem.
// Send must not block the sender.
type Receiver interface {
	ID() string
	Send(msg any)
}

// Instrumentation is the control surface of the event capture subsystem.
type Instrumentation interface {
	// Enable starts capturing flags on owner, delivering events to receiver.
	Enable(owner domain.Owner, receiver Receiver, flags Flags) error
	// Receiver returns the receiver currently attached to owner, if any.
	Receiver(owner domain.Owner) (Receiver, bool)
	// Disable stops capture on owner if receiver is still the one attached.
	Disable(owner domain.Owner, receiver Receiver)
}
