package tracer

import "github.com/aretw0/reqtrace/pkg/domain"

// Activation results reported to Hooks.OnActivate.
const (
	ResultTraced        = "traced"
	ResultNoConfig      = "no_config"
	ResultNoMatch       = "no_match"
	ResultNoOwner       = "no_owner"
	ResultAlreadyTraced = "already_traced"
	ResultError         = "error"
)

// Hooks defines callbacks for tracer observability.
// Any field may be nil.
type Hooks struct {
	OnActivate func(result string)
	OnEvent    func(w *Worker, ev domain.TraceEvent)
	OnStray    func(w *Worker, msg any)
	OnExit     func(w *Worker, reason error)
}

func (h Hooks) activate(result string) {
	if h.OnActivate != nil {
		h.OnActivate(result)
	}
}

func (h Hooks) event(w *Worker, ev domain.TraceEvent) {
	if h.OnEvent != nil {
		h.OnEvent(w, ev)
	}
}

func (h Hooks) stray(w *Worker, msg any) {
	if h.OnStray != nil {
		h.OnStray(w, msg)
	}
}

func (h Hooks) exit(w *Worker, reason error) {
	if h.OnExit != nil {
		h.OnExit(w, reason)
	}
}

// ChainHooks combines several Hooks; each event is reported to all of them
// in order.
func ChainHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnActivate: func(result string) {
			for _, h := range hooks {
				h.activate(result)
			}
		},
		OnEvent: func(w *Worker, ev domain.TraceEvent) {
			for _, h := range hooks {
				h.event(w, ev)
			}
		},
		OnStray: func(w *Worker, msg any) {
			for _, h := range hooks {
				h.stray(w, msg)
			}
		},
		OnExit: func(w *Worker, reason error) {
			for _, h := range hooks {
				h.exit(w, reason)
			}
		},
	}
}
