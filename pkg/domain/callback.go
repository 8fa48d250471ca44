package domain

// State is the opaque accumulator threaded through a Callback.
// It is owned by exactly one tracer worker and never shared.
type State any

// Callback consumes the events of one traced stream as a left fold.
//
// OnInit runs once and produces the initial State. OnEvent runs once per
// delivered event, in order, and returns the next State. OnTerminate runs
// exactly once at the end of a normal life; its result is discarded.
// Returning an error (or panicking) aborts the tracer abnormally.
type Callback interface {
	OnInit(streamID string, rc *RequestContext, opts Options) (State, error)
	OnEvent(ev TraceEvent, st State) (State, error)
	OnTerminate(st State)
}

// Options are the per-stream options handed down by the pipeline.
// Only KeyMatchSpec and KeyCallback are interpreted; the rest pass through.
type Options map[string]any

// Callback returns the configured callback, if any.
func (o Options) Callback() (Callback, bool) {
	v, ok := o[KeyCallback]
	if !ok || v == nil {
		return nil, false
	}
	cb, ok := v.(Callback)
	return cb, ok
}

// With returns a copy of the options with key set to value.
func (o Options) With(key string, value any) Options {
	out := make(Options, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	out[key] = value
	return out
}
