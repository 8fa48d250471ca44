package match_test

import (
	"testing"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/aretw0/reqtrace/pkg/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type resolverFunc map[string]func(string, *domain.RequestContext, domain.Options) bool

func (r resolverFunc) Predicate(name string) (func(string, *domain.RequestContext, domain.Options) bool, bool) {
	fn, ok := r[name]
	return fn, ok
}

func TestDecode_FromYAML(t *testing.T) {
	src := `
- method: GET
- host: example.com
- path_prefix: /api/
- header_present: x-trace
- header_equals: {name: x-trace, value: 1}
- peer_ip: 10.0.0.7
- predicate: always
`
	var raw []any
	require.NoError(t, yaml.Unmarshal([]byte(src), &raw))

	resolver := resolverFunc{"always": func(string, *domain.RequestContext, domain.Options) bool { return true }}
	spec, err := match.Decode(raw, resolver)
	require.NoError(t, err)
	require.Len(t, spec, 7)

	assert.Equal(t, match.Method{Value: "GET"}, spec[0])
	assert.Equal(t, match.HeaderEquals{Name: "x-trace", Value: "1"}, spec[4])
	assert.True(t, spec.Match("1", apiRequest(), nil))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  []any
	}{
		{"unknown key", []any{map[string]any{"verb": "GET"}}},
		{"two conditions", []any{map[string]any{"method": "GET", "path": "/"}}},
		{"empty clause", []any{map[string]any{}}},
		{"not a map", []any{"GET"}},
		{"bad peer", []any{map[string]any{"peer_ip": "not-an-ip"}}},
		{"header without name", []any{map[string]any{"header_equals": map[string]any{"value": "1"}}}},
		{"unresolved predicate", []any{map[string]any{"predicate": "missing"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := match.Decode(tt.raw, resolverFunc{})
			assert.ErrorIs(t, err, match.ErrInvalidClause)
		})
	}
}

func TestDecode_PredicateWithoutResolver(t *testing.T) {
	_, err := match.Decode([]any{map[string]any{"predicate": "x"}}, nil)
	assert.ErrorIs(t, err, match.ErrInvalidClause)
}
