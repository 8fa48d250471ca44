package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/reqtrace/internal/logging"
	"github.com/aretw0/reqtrace/pkg/ports"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultControlTTL bounds how long a controller may keep a tracer
	// suspended before its lock expires.
	DefaultControlTTL = 30 * time.Second
	lockWait          = time.Second
	controlTimeout    = 5 * time.Second
)

// Workers is the set of tracers the admin API can reach.
type Workers interface {
	Lookup(id string) (*tracer.Worker, bool)
	Workers() []*tracer.Worker
}

// Server exposes the tracer control plane over HTTP.
type Server struct {
	workers  Workers
	locker   ports.DistributedLocker
	ttl      time.Duration
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	mu   sync.Mutex
	held map[string]ports.UnlockFunc
}

// ServerOption configures the admin Server.
type ServerOption func(*Server)

// WithLocker serializes controllers through locker. A suspended tracer stays
// locked until resumed, migrated, terminated or the TTL expires.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.locker = locker
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithGatherer exposes gatherer on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithServerLogger configures a logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the admin server for workers.
func NewServer(workers Workers, opts ...ServerOption) *Server {
	s := &Server{
		workers: workers,
		ttl:     DefaultControlTTL,
		logger:  logging.NewNop(),
		held:    make(map[string]ports.UnlockFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates the admin HTTP handler.
func NewHandler(workers Workers, opts ...ServerOption) http.Handler {
	return NewServer(workers, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/tracers", func(r chi.Router) {
		r.Get("/", s.ListTracers)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetTracer)
			r.Post("/suspend", s.Suspend)
			r.Post("/resume", s.Resume)
			r.Post("/terminate", s.Terminate)
			r.Post("/migrate", s.Migrate)
		})
	})
	return r
}

// TracerView is the JSON rendering of a worker.
type TracerView struct {
	ID        string    `json:"id"`
	StreamID  string    `json:"stream_id"`
	Owner     string    `json:"owner"`
	Phase     string    `json:"phase"`
	Processed uint64    `json:"processed"`
	Pending   int       `json:"pending"`
	StartedAt time.Time `json:"started_at"`
	Callback  string    `json:"callback,omitempty"`
	State     string    `json:"state,omitempty"`
}

func viewOf(w *tracer.Worker) TracerView {
	v := TracerView{
		ID:        w.ID(),
		StreamID:  w.StreamID(),
		Phase:     w.Phase().String(),
		Processed: w.Processed(),
		Pending:   w.Pending(),
		StartedAt: w.StartedAt(),
	}
	if owner := w.Owner(); owner != nil {
		v.Owner = owner.ID()
	}
	return v
}

func snapshotView(w *tracer.Worker, snap tracer.Snapshot) TracerView {
	v := viewOf(w)
	v.Phase = snap.Phase.String()
	v.Processed = snap.Processed
	v.Pending = snap.Pending
	v.Callback = fmt.Sprintf("%T", snap.Callback)
	v.State = fmt.Sprintf("%T", snap.State)
	return v
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTracers handles the GET /tracers request.
func (s *Server) ListTracers(w http.ResponseWriter, r *http.Request) {
	workers := s.workers.Workers()
	views := make([]TracerView, 0, len(workers))
	for _, wk := range workers {
		views = append(views, viewOf(wk))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetTracer handles the GET /tracers/{id} request.
func (s *Server) GetTracer(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()

	snap, err := wk.Inspect(ctx)
	if err != nil {
		s.controlError(w, "inspect", wk, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(wk, snap))
}

// Suspend handles the POST /tracers/{id}/suspend request.
func (s *Server) Suspend(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := s.lock(r.Context(), wk.ID()); err != nil {
		http.Error(w, fmt.Sprintf("Tracer is held by another controller: %v", err), http.StatusConflict)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()
	snap, err := wk.Suspend(ctx)
	if err != nil {
		s.unlock(wk.ID())
		s.controlError(w, "suspend", wk, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(wk, snap))
}

// Resume handles the POST /tracers/{id}/resume request.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.lookup(w, r)
	if !ok {
		return
	}
	defer s.unlock(wk.ID())

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()
	if err := wk.Resume(ctx); err != nil {
		s.controlError(w, "resume", wk, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(wk))
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

// Terminate handles the POST /tracers/{id}/terminate request.
// An empty body terminates with a normal reason.
func (s *Server) Terminate(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body terminateRequest
	if !decodeOptional(w, r, &body) {
		return
	}
	defer s.unlock(wk.ID())

	var reason error
	if body.Reason != "" {
		reason = errors.New(body.Reason)
	}

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()
	if err := wk.Terminate(ctx, reason); err != nil {
		s.controlError(w, "terminate", wk, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(wk))
}

type migrateRequest struct {
	Extra any `json:"extra"`
}

// Migrate handles the POST /tracers/{id}/migrate request.
func (s *Server) Migrate(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body migrateRequest
	if !decodeOptional(w, r, &body) {
		return
	}
	defer s.unlock(wk.ID())

	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()
	snap, err := wk.MigrateState(ctx, body.Extra)
	if err != nil {
		s.controlError(w, "migrate", wk, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(wk, snap))
}

// -- Helpers --

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*tracer.Worker, bool) {
	id := chi.URLParam(r, "id")
	wk, ok := s.workers.Lookup(id)
	if !ok {
		http.Error(w, "Tracer not found", http.StatusNotFound)
		return nil, false
	}
	return wk, true
}

func (s *Server) lock(ctx context.Context, id string) error {
	if s.locker == nil {
		return nil
	}
	s.mu.Lock()
	_, held := s.held[id]
	s.mu.Unlock()
	if held {
		// Re-suspending from the same control plane is allowed.
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	unlock, err := s.locker.Lock(ctx, "tracer:"+id, s.ttl)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.held[id] = unlock
	s.mu.Unlock()
	return nil
}

func (s *Server) unlock(id string) {
	s.mu.Lock()
	unlock, ok := s.held[id]
	delete(s.held, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := unlock(context.Background()); err != nil {
		s.logger.Warn("Failed to release tracer lock", "tracer", id, "err", err)
	}
}

func (s *Server) controlError(w http.ResponseWriter, op string, wk *tracer.Worker, err error) {
	switch {
	case errors.Is(err, tracer.ErrWorkerExited):
		http.Error(w, "Tracer has exited", http.StatusGone)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Tracer did not answer in time", http.StatusGatewayTimeout)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	}
	s.logger.Warn("Control request failed", "op", op, "tracer", wk.ID(), "err", err)
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
