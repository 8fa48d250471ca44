package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/aretw0/reqtrace/pkg/adapters/instrument"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/pipeline"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// clientPeer names the remote end in send/receive events.
const clientPeer = "client"

// OptionsFunc builds the per-stream options for a request.
type OptionsFunc func(r *http.Request) domain.Options

// Middleware drives a pipeline.Stage for every HTTP request. Each request
// runs as an instrumented process that owns its stream.
type Middleware struct {
	hub        *instrument.Hub
	stage      pipeline.Stage
	supervisor *tracer.Supervisor
	options    OptionsFunc
	logger     *slog.Logger
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// WithSupervisor sets where spawned tracers are supervised.
func WithSupervisor(s *tracer.Supervisor) MiddlewareOption {
	return func(m *Middleware) {
		m.supervisor = s
	}
}

// WithOptions sets the per-request options provider.
func WithOptions(fn OptionsFunc) MiddlewareOption {
	return func(m *Middleware) {
		m.options = fn
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// NewMiddleware creates a middleware spawning owners on hub and driving stage.
func NewMiddleware(hub *instrument.Hub, stage pipeline.Stage, opts ...MiddlewareOption) *Middleware {
	if stage == nil {
		stage = pipeline.Nop{}
	}
	m := &Middleware{
		hub:     hub,
		stage:   stage,
		options: func(*http.Request) domain.Options { return domain.Options{} },
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.supervisor == nil {
		m.supervisor = tracer.NewSupervisor(tracer.WithSupervisorLogger(m.logger))
	}
	return m
}

// Supervisor returns the supervisor receiving spawned tracers.
func (m *Middleware) Supervisor() *tracer.Supervisor {
	return m.supervisor
}

// Handler wraps next. Place it after chi's RequestID middleware to reuse
// its IDs as stream IDs.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		streamID := middleware.GetReqID(ctx)
		if streamID == "" {
			streamID = uuid.NewString()
		}

		proc := m.hub.Spawn(ctx)
		rc := NewRequestContext(r, streamID, proc)

		cmds, err := m.stage.Init(ctx, streamID, rc, m.options(r))
		m.execute(streamID, cmds)
		if err != nil {
			m.logger.Warn("Stage init failed", "stream_id", streamID, "err", err)
			status := m.stage.EarlyError(ctx, streamID, http.StatusInternalServerError, err)
			http.Error(w, http.StatusText(status), status)
			m.stage.Terminate(ctx, streamID)
			proc.Exit(err)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				reason, ok := rec.(error)
				if !ok {
					reason = fmt.Errorf("panic: %v", rec)
				}
				m.stage.Terminate(ctx, streamID)
				proc.Exit(reason)
				panic(rec)
			}
			m.stage.Terminate(ctx, streamID)
			proc.Exit(nil)
		}()

		r = r.WithContext(instrument.NewContext(ctx, proc))
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = &tracedBody{ReadCloser: r.Body, m: m, r: r, streamID: streamID, proc: proc}
		}
		next.ServeHTTP(&tracedWriter{ResponseWriter: w, proc: proc}, r)
	})
}

func (m *Middleware) execute(streamID string, cmds pipeline.Commands) {
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case pipeline.Spawn:
			m.supervisor.Supervise(c.Child)
		default:
			m.logger.Debug("Ignoring unknown stage command", "stream_id", streamID, "command", fmt.Sprintf("%T", cmd))
		}
	}
}

// NewRequestContext snapshots r for matching. Header names are lowercased
// and only the first value of each header is kept. An unparsable remote
// address leaves Peer nil.
func NewRequestContext(r *http.Request, streamID string, owner domain.Owner) *domain.RequestContext {
	headers := make(domain.Headers, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	rc := &domain.RequestContext{
		StreamID: streamID,
		Method:   r.Method,
		Host:     r.Host,
		Path:     r.URL.Path,
		Headers:  headers,
		Owner:    owner,
	}
	if peer, err := domain.ParsePeer(r.RemoteAddr); err == nil {
		rc.Peer = peer
	}
	return rc
}

// tracedBody reports body chunks to the stage and to the owner's tracer.
type tracedBody struct {
	io.ReadCloser
	m        *Middleware
	r        *http.Request
	streamID string
	proc     *instrument.Process
	fin      bool
}

func (b *tracedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if b.fin {
		return n, err
	}
	if n > 0 {
		b.proc.Receive(clientPeer, string(p[:n]))
	}
	if n == 0 && err == nil {
		return n, err
	}

	b.fin = err == io.EOF
	cmds, serr := b.m.stage.Data(b.r.Context(), b.streamID, b.fin, p[:n])
	b.m.execute(b.streamID, cmds)
	if serr != nil {
		b.fin = true
		return n, serr
	}
	return n, err
}

// tracedWriter reports response writes as send events.
type tracedWriter struct {
	http.ResponseWriter
	proc        *instrument.Process
	wroteHeader bool
}

func (w *tracedWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.proc.Send(clientPeer, code)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *tracedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	if n > 0 {
		w.proc.Send(clientPeer, string(b[:n]))
	}
	return n, err
}

func (w *tracedWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *tracedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
