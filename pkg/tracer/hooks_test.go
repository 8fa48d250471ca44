package tracer_test

import (
	"testing"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/tracer"
	"github.com/stretchr/testify/assert"
)

func TestChainHooks(t *testing.T) {
	var calls []string
	first := tracer.Hooks{
		OnActivate: func(r string) { calls = append(calls, "first:"+r) },
		OnExit:     func(*tracer.Worker, error) { calls = append(calls, "first:exit") },
	}
	second := tracer.Hooks{
		OnActivate: func(r string) { calls = append(calls, "second:"+r) },
		OnEvent:    func(*tracer.Worker, domain.TraceEvent) { calls = append(calls, "second:event") },
	}

	h := tracer.ChainHooks(first, second, tracer.Hooks{})
	h.OnActivate(tracer.ResultNoMatch)
	h.OnEvent(nil, domain.TraceEvent{})
	h.OnStray(nil, "x")
	h.OnExit(nil, domain.ErrNormal)

	assert.Equal(t, []string{"first:no_match", "second:no_match", "second:event", "first:exit"}, calls)
}
