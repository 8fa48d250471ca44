package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/reqtrace/internal/config"
	"github.com/aretw0/reqtrace/pkg/callbacks"
	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/aretw0/reqtrace/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log_level: debug
server:
  addr: ":8081"
redis:
  addr: localhost:6379
  ttl: 30s
tracers:
  - name: api
    callback: recorder
    match:
      - method: GET
      - path_prefix: /api/
      - header_equals: {name: x-trace, value: 1}
  - name: internal
    callback: recorder
    match:
      - predicate: internal
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testRegistry() *registry.Registry {
	reg := registry.NewRegistry()
	reg.RegisterCallback("recorder", func(map[string]any) (domain.Callback, error) {
		return callbacks.NewRecorder(), nil
	})
	reg.RegisterPredicate("internal", func(_ string, rc *domain.RequestContext, _ domain.Options) bool {
		_, ok := rc.Header("x-internal")
		return ok
	})
	return reg
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := config.Load(write(t, "reqtrace.yaml", sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Server.AdminAddr, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "reqtrace:owner:", cfg.Redis.Prefix)
	require.Len(t, cfg.Tracers, 2)

	profiles, err := cfg.Profiles(testRegistry())
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	api := profiles[0]
	assert.Equal(t, "api", api.Name)
	assert.Equal(t, "method == GET AND path starts with /api/ AND header x-trace == 1", match.Describe(api.Spec))

	rc := &domain.RequestContext{Method: "GET", Path: "/api/x", Headers: domain.Headers{"x-trace": "1"}}
	assert.True(t, api.Spec.Match("s1", rc, nil))

	opts := api.Options()
	_, ok := opts.Callback()
	assert.True(t, ok)
}

func TestLoad_JSON(t *testing.T) {
	cfg, err := config.Load(write(t, "reqtrace.json",
		`{"tracers":[{"name":"all","callback":"recorder"}]}`))
	require.NoError(t, err)

	profiles, err := cfg.Profiles(testRegistry())
	require.NoError(t, err)
	assert.Empty(t, profiles[0].Spec, "no match list traces everything")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no tracers", "log_level: info\n", config.ErrNoTracers.Error()},
		{"unknown key", "tracer: []\n", "invalid config"},
		{"missing name", "tracers: [{callback: recorder}]\n", "name is required"},
		{"duplicate", "tracers: [{name: a, callback: recorder}, {name: a, callback: recorder}]\n", "duplicate name"},
		{"missing callback", "tracers: [{name: a}]\n", "callback is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(write(t, "c.yaml", tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProfiles_ResolutionErrors(t *testing.T) {
	cfg, err := config.Decode(map[string]any{
		"tracers": []any{map[string]any{
			"name":     "bad",
			"callback": "recorder",
			"match":    []any{map[string]any{"predicate": "unknown"}},
		}},
	})
	require.NoError(t, err)
	_, err = cfg.Profiles(testRegistry())
	assert.ErrorIs(t, err, match.ErrInvalidClause)

	cfg.Tracers[0].Match = nil
	cfg.Tracers[0].Callback = "nope"
	_, err = cfg.Profiles(testRegistry())
	assert.ErrorContains(t, err, "callback not found")
}
