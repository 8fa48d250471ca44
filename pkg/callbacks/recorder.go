package callbacks

import (
	"sync"

	"github.com/aretw0/reqtrace/pkg/domain"
)

type recording struct {
	streamID string
	events   []domain.TraceEvent
}

// Recorder keeps the events of every finished stream in memory.
// It is mostly useful in tests and demos.
type Recorder struct {
	mu       sync.Mutex
	finished map[string][]domain.TraceEvent
	notify   chan string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		finished: make(map[string][]domain.TraceEvent),
		notify:   make(chan string, 64),
	}
}

func (r *Recorder) OnInit(streamID string, _ *domain.RequestContext, _ domain.Options) (domain.State, error) {
	return &recording{streamID: streamID}, nil
}

func (r *Recorder) OnEvent(ev domain.TraceEvent, st domain.State) (domain.State, error) {
	rec := st.(*recording)
	rec.events = append(rec.events, ev)
	return rec, nil
}

func (r *Recorder) OnTerminate(st domain.State) {
	rec := st.(*recording)
	r.mu.Lock()
	r.finished[rec.streamID] = rec.events
	r.mu.Unlock()

	select {
	case r.notify <- rec.streamID:
	default:
	}
}

// Events returns the events recorded for a finished stream.
func (r *Recorder) Events(streamID string) ([]domain.TraceEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs, ok := r.finished[streamID]
	return evs, ok
}

// Streams returns the number of finished streams.
func (r *Recorder) Streams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finished)
}

// Finished delivers stream IDs as their tracers terminate.
func (r *Recorder) Finished() <-chan string {
	return r.notify
}

// Recorded returns the events folded so far from a snapshot State.
func Recorded(st domain.State) []domain.TraceEvent {
	if rec, ok := st.(*recording); ok {
		return rec.events
	}
	return nil
}
