package http_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	reqhttp "github.com/aretw0/reqtrace/pkg/adapters/http"
	"github.com/aretw0/reqtrace/pkg/adapters/instrument"
	"github.com/aretw0/reqtrace/pkg/callbacks"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/aretw0/reqtrace/pkg/pipeline"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	hub      *instrument.Hub
	recorder *callbacks.Recorder
	mw       *reqhttp.Middleware
	exits    chan error
	router   chi.Router
}

func newFixture(t *testing.T, stage func(*tracer.Guard) pipeline.Stage) *fixture {
	t.Helper()
	f := &fixture{
		hub:      instrument.NewHub(),
		recorder: callbacks.NewRecorder(),
		exits:    make(chan error, 8),
	}
	guard := tracer.NewGuard(f.hub, tracer.WithHooks(tracer.Hooks{
		OnExit: func(_ *tracer.Worker, reason error) { f.exits <- reason },
	}))

	opts := domain.Options{
		domain.KeyMatchSpec: match.Spec{match.PathPrefix{Value: "/api/"}},
		domain.KeyCallback:  f.recorder,
	}
	f.mw = reqhttp.NewMiddleware(f.hub, stage(guard),
		reqhttp.WithOptions(func(*http.Request) domain.Options { return opts }),
	)

	f.router = chi.NewRouter()
	f.router.Use(middleware.Recoverer, middleware.RequestID, f.mw.Handler)
	f.router.Post("/api/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	})
	f.router.Get("/api/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	f.router.Get("/static", func(w http.ResponseWriter, r *http.Request) {
		_, traced := instrument.FromContext(r.Context())
		assert.True(t, traced, "owner process is always in the context")
		w.Write([]byte("ok"))
	})
	return f
}

func tracing(g *tracer.Guard) pipeline.Stage { return pipeline.NewTracerStage(g, nil) }

func kinds(evs []domain.TraceEvent) []domain.EventKind {
	out := make([]domain.EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func (f *fixture) finished(t *testing.T) []domain.TraceEvent {
	t.Helper()
	select {
	case id := <-f.recorder.Finished():
		evs, ok := f.recorder.Events(id)
		require.True(t, ok)
		return evs
	case <-time.After(time.Second):
		t.Fatal("no traced stream finished")
		return nil
	}
}

func TestMiddleware_TracesMatchingRequest(t *testing.T) {
	f := newFixture(t, tracing)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/echo", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(body))

	evs := f.finished(t)
	assert.Equal(t, []domain.EventKind{
		domain.EventReceive, domain.EventSend, domain.EventSend, domain.EventExit,
	}, kinds(evs))
	assert.Equal(t, "hello", evs[0].Payload)
	assert.Equal(t, http.StatusOK, evs[1].Payload)
	for i := 1; i < len(evs); i++ {
		assert.Greater(t, evs[i].Seq, evs[i-1].Seq)
	}

	assert.ErrorIs(t, <-f.exits, domain.ErrNormal)
	require.Eventually(t, func() bool { return f.mw.Supervisor().Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, f.hub.Len())
}

func TestMiddleware_IgnoresNonMatchingRequest(t *testing.T) {
	f := newFixture(t, tracing)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Zero(t, f.mw.Supervisor().Len())
	assert.Zero(t, f.recorder.Streams())
	assert.Zero(t, f.hub.Len())
}

func TestMiddleware_PanicBecomesExitReason(t *testing.T) {
	f := newFixture(t, tracing)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	select {
	case reason := <-f.exits:
		assert.ErrorContains(t, reason, "boom")
		assert.False(t, domain.IsNormal(reason))
	case <-time.After(time.Second):
		t.Fatal("tracer did not exit")
	}

	evs := f.finished(t)
	require.NotEmpty(t, evs)
	assert.Equal(t, domain.EventExit, evs[len(evs)-1].Kind)
}

type failingStage struct {
	pipeline.Nop
	status int
}

func (s failingStage) Init(context.Context, string, *domain.RequestContext, domain.Options) (pipeline.Commands, error) {
	return nil, errors.New("init refused")
}

func (s failingStage) EarlyError(context.Context, string, int, error) int { return s.status }

func TestMiddleware_InitErrorUsesEarlyError(t *testing.T) {
	f := newFixture(t, func(g *tracer.Guard) pipeline.Stage {
		return pipeline.NewTracerStage(g, failingStage{status: http.StatusServiceUnavailable})
	})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	select {
	case reason := <-f.exits:
		assert.ErrorContains(t, reason, "init refused")
	case <-time.After(time.Second):
		t.Fatal("tracer did not exit")
	}
}

func TestNewRequestContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/users?x=1", nil)
	req.RemoteAddr = "10.0.0.7:4242"
	req.Header.Add("X-Trace", "1")
	req.Header.Add("X-Trace", "2")

	rc := reqhttp.NewRequestContext(req, "s1", nil)
	assert.Equal(t, "s1", rc.StreamID)
	assert.Equal(t, "example.com", rc.Host)
	assert.Equal(t, "/api/users", rc.Path)

	v, ok := rc.Header("x-trace")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NotNil(t, rc.Peer)
	assert.Equal(t, "10.0.0.7:4242", rc.Peer.String())

	req.RemoteAddr = "@unix"
	assert.Nil(t, reqhttp.NewRequestContext(req, "s2", nil).Peer)
}
