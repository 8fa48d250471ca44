package callbacks

import "github.com/aretw0/reqtrace/pkg/domain"

// Funcs adapts plain functions to domain.Callback. Nil fields are no-ops:
// Init yields a nil State and Event returns the State unchanged.
type Funcs struct {
	Init      func(streamID string, rc *domain.RequestContext, opts domain.Options) (domain.State, error)
	Event     func(ev domain.TraceEvent, st domain.State) (domain.State, error)
	Terminate func(st domain.State)
}

var _ domain.Callback = Funcs{}

func (f Funcs) OnInit(streamID string, rc *domain.RequestContext, opts domain.Options) (domain.State, error) {
	if f.Init == nil {
		return nil, nil
	}
	return f.Init(streamID, rc, opts)
}

func (f Funcs) OnEvent(ev domain.TraceEvent, st domain.State) (domain.State, error) {
	if f.Event == nil {
		return st, nil
	}
	return f.Event(ev, st)
}

func (f Funcs) OnTerminate(st domain.State) {
	if f.Terminate != nil {
		f.Terminate(st)
	}
}
