package tracer_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_TracksUntilExit(t *testing.T) {
	sup := tracer.NewSupervisor()
	w, owner := startWorker(t, &seqCallback{})

	sup.Supervise(tracer.ChildSpec{Worker: w})
	got, ok := sup.Lookup(w.ID())
	require.True(t, ok)
	assert.Same(t, w, got)
	assert.Equal(t, []*tracer.Worker{w}, sup.Workers())

	owner.exit(domain.ErrNormal)
	waitDone(t, w)
	require.Eventually(t, func() bool { return sup.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_ShutdownTerminatesChildren(t *testing.T) {
	sup := tracer.NewSupervisor()
	w1, _ := startWorker(t, &seqCallback{})
	w2, _ := startWorker(t, &seqCallback{})
	sup.Supervise(tracer.ChildSpec{Worker: w1, Shutdown: time.Second})
	sup.Supervise(tracer.ChildSpec{Worker: w2, Shutdown: time.Second})

	require.NoError(t, sup.Shutdown(context.Background()))
	assert.ErrorIs(t, w1.Err(), tracer.ErrShutdown)
	assert.ErrorIs(t, w2.Err(), tracer.ErrShutdown)
}

func TestSupervisor_ShutdownHonorsGrace(t *testing.T) {
	sup := tracer.NewSupervisor()
	cb := &seqCallback{block: make(chan struct{})}
	w, _ := startWorker(t, cb)
	sup.Supervise(tracer.ChildSpec{Worker: w, Shutdown: 30 * time.Millisecond})

	start := time.Now()
	err := sup.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	// The slow callback still completes on its own
	close(cb.block)
	waitDone(t, w)
	assert.ErrorIs(t, w.Err(), tracer.ErrShutdown)
}

func TestSupervisor_IgnoresEmptyChild(t *testing.T) {
	sup := tracer.NewSupervisor()
	sup.Supervise(tracer.ChildSpec{})
	assert.Equal(t, 0, sup.Len())
	assert.NoError(t, sup.Shutdown(context.Background()))
}
