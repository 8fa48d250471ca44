package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeer(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"10.0.0.1:8080", "10.0.0.1:8080"},
		{"10.0.0.1", "10.0.0.1:0"},
		{"[::1]:443", "[::1]:443"},
		{"[::ffff:192.168.1.2]:80", "192.168.1.2:80"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			p, err := domain.ParsePeer(tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}

	for _, bad := range []string{"", "localhost:80", "10.0.0.1:99999"} {
		_, err := domain.ParsePeer(bad)
		assert.Error(t, err, bad)
	}
}

func TestRequestContext_Header(t *testing.T) {
	var nilCtx *domain.RequestContext
	_, ok := nilCtx.Header("x")
	assert.False(t, ok)

	_, ok = (&domain.RequestContext{}).Header("x")
	assert.False(t, ok, "nil headers mapping has no headers")

	rc := &domain.RequestContext{Headers: domain.Headers{"x-trace": ""}}
	v, ok := rc.Header("x-trace")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = rc.Header("X-Trace")
	assert.False(t, ok, "lookup is by exact name")
}

func TestOptions(t *testing.T) {
	opts := domain.Options{"tenant": "acme"}
	_, ok := opts.Callback()
	assert.False(t, ok)

	with := opts.With(domain.KeyCallback, "not a callback")
	_, ok = with.Callback()
	assert.False(t, ok)
	assert.NotContains(t, opts, domain.KeyCallback, "With copies")
}

func TestIsNormal(t *testing.T) {
	assert.True(t, domain.IsNormal(nil))
	assert.True(t, domain.IsNormal(fmt.Errorf("owner: %w", domain.ErrNormal)))
	assert.False(t, domain.IsNormal(errors.New("crash")))
}
