package tracer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/reqtrace/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Supervisor tracks the tracers spawned for streams and stops them on
// shutdown, honoring each child's grace period.
type Supervisor struct {
	mu       sync.RWMutex
	children map[string]ChildSpec
	logger   *slog.Logger
}

// SupervisorOption configures the Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger configures a logger for the Supervisor.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		children: make(map[string]ChildSpec),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Supervise starts tracking child until its worker exits.
func (s *Supervisor) Supervise(child ChildSpec) {
	w := child.Worker
	if w == nil {
		return
	}
	if child.Shutdown <= 0 {
		child.Shutdown = DefaultShutdownGrace
	}

	s.mu.Lock()
	s.children[w.ID()] = child
	s.mu.Unlock()

	go func() {
		<-w.Done()
		s.mu.Lock()
		delete(s.children, w.ID())
		s.mu.Unlock()
	}()
}

// Lookup returns a supervised worker by ID.
func (s *Supervisor) Lookup(id string) (*Worker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[id]
	return c.Worker, ok
}

// Workers returns the supervised workers, oldest first.
func (s *Supervisor) Workers() []*Worker {
	s.mu.RLock()
	out := make([]*Worker, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c.Worker)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt().Equal(out[j].StartedAt()) {
			return out[i].ID() < out[j].ID()
		}
		return out[i].StartedAt().Before(out[j].StartedAt())
	})
	return out
}

// Len returns the number of supervised workers.
func (s *Supervisor) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.children)
}

// Shutdown terminates every child with ErrShutdown in parallel. Each child
// gets its own grace period (bounded by ctx). It returns the first child
// that failed to stop in time.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	children := make([]ChildSpec, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.mu.RUnlock()

	var g errgroup.Group
	for _, c := range children {
		c := c
		g.Go(func() error {
			start := time.Now()
			cctx, cancel := context.WithTimeout(ctx, c.Shutdown)
			defer cancel()

			if err := c.Worker.Terminate(cctx, ErrShutdown); err != nil {
				s.logger.Error("Tracer did not stop within grace period",
					"tracer", c.Worker.ID(),
					"grace", c.Shutdown,
					"err", err,
				)
				return fmt.Errorf("tracer %s: %w", c.Worker.ID(), err)
			}
			s.logger.Debug("Tracer stopped", "tracer", c.Worker.ID(), "took", time.Since(start))
			return nil
		})
	}
	return g.Wait()
}
