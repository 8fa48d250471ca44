package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/reqtrace/pkg/adapters/instrument"
	"github.com/aretw0/reqtrace/pkg/callbacks"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/aretw0/reqtrace/pkg/observability"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordTracerLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hub := instrument.NewHub()
	guard := tracer.NewGuard(hub, tracer.WithHooks(m.Hooks()))

	proc := hub.Spawn(context.Background())
	rc := &domain.RequestContext{Method: "GET", Path: "/api/x", Owner: proc}
	opts := domain.Options{
		domain.KeyMatchSpec: match.Spec{match.Method{Value: "GET"}},
		domain.KeyCallback:  callbacks.NewRecorder(),
	}

	act := guard.Activate(context.Background(), "s1", rc, opts)
	require.True(t, act.Tracing())
	guard.Activate(context.Background(), "s1", rc, opts)
	guard.Activate(context.Background(), "s2", &domain.RequestContext{Method: "POST", Owner: proc}, opts)
	guard.Activate(context.Background(), "s3", rc, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Active))

	proc.Call("handler", nil)
	act.Worker.Send("junk")
	proc.Exit(nil)
	<-act.Worker.Done()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues(tracer.ResultTraced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues(tracer.ResultAlreadyTraced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues(tracer.ResultNoMatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues(tracer.ResultNoConfig)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("exit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Strays))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exits.WithLabelValues("normal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Active))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "normal", observability.Outcome(nil))
	assert.Equal(t, "normal", observability.Outcome(domain.ErrNormal))
	assert.Equal(t, "callback_error", observability.Outcome(&tracer.CallbackError{Op: "event", Err: errors.New("x")}))
	assert.Equal(t, "abnormal", observability.Outcome(tracer.ErrShutdown))
}

func TestNewMetrics_Unregistered(t *testing.T) {
	assert.NotPanics(t, func() { observability.NewMetrics(nil) })
}
