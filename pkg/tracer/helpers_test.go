package tracer_test

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// fakeOwner is a minimal domain.Owner driven by tests.
type fakeOwner struct {
	id     string
	done   chan struct{}
	once   sync.Once
	reason error
}

func newOwner(id string) *fakeOwner {
	return &fakeOwner{id: id, done: make(chan struct{})}
}

func (o *fakeOwner) ID() string            { return o.id }
func (o *fakeOwner) Done() <-chan struct{} { return o.done }
func (o *fakeOwner) Err() error            { return o.reason }
func (o *fakeOwner) exit(reason error) {
	o.once.Do(func() {
		o.reason = reason
		close(o.done)
	})
}

// seqCallback folds events into the ordered list of their sequence numbers.
type seqCallback struct {
	inits      atomic.Int32
	terminates atomic.Int32

	mu    sync.Mutex
	final []uint64

	failOn  uint64 // OnEvent fails on this Seq when non-zero
	initErr error
	block   chan struct{} // OnTerminate waits on it when non-nil

	holdOn  uint64        // OnEvent waits on release for this Seq when non-zero
	release chan struct{}
}

func (c *seqCallback) OnInit(streamID string, rc *domain.RequestContext, opts domain.Options) (domain.State, error) {
	c.inits.Add(1)
	if c.initErr != nil {
		return nil, c.initErr
	}
	return []uint64{}, nil
}

func (c *seqCallback) OnEvent(ev domain.TraceEvent, st domain.State) (domain.State, error) {
	if c.failOn != 0 && ev.Seq == c.failOn {
		return st, errEventFailed
	}
	if c.holdOn != 0 && ev.Seq == c.holdOn {
		<-c.release
	}
	return append(st.([]uint64), ev.Seq), nil
}

func (c *seqCallback) OnTerminate(st domain.State) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.final = st.([]uint64)
	c.mu.Unlock()
	c.terminates.Add(1)
}

func (c *seqCallback) finalState() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.final
}

func event(seq uint64) domain.TraceEvent {
	return domain.TraceEvent{Kind: domain.EventCall, Owner: "owner", Seq: seq, Timestamp: time.Now(), Routine: "handler"}
}

func seqs(from, to uint64) []uint64 {
	var out []uint64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
