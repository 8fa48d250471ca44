package domain

import (
	"fmt"
	"time"
)

// EventKind defines the category of a trace event.
type EventKind string

const (
	EventCall    EventKind = "call"
	EventReturn  EventKind = "return"
	EventSend    EventKind = "send"
	EventReceive EventKind = "receive"
	EventSpawn   EventKind = "spawn"
	EventExit    EventKind = "exit"
	EventLink    EventKind = "link"
	EventUnlink  EventKind = "unlink"
)

// TraceEvent is a single record produced by the instrumentation subsystem.
// Events of one owner are totally ordered by Seq.
type TraceEvent struct {
	Kind      EventKind `json:"kind"`
	Owner     string    `json:"owner"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	// Routine names the called/returning routine, or the peer for send/receive.
	Routine string `json:"routine,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("#%d %s %s %s", e.Seq, e.Owner, e.Kind, e.Routine)
}
