package match

import (
	"strings"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// Spec is an ordered list of clauses that must all hold.
type Spec []Clause

// Evaluate runs spec against a stream. Clauses are evaluated left to right
// and evaluation stops at the first clause that does not match.
func Evaluate(spec Spec, streamID string, rc *domain.RequestContext, opts domain.Options) bool {
	for _, clause := range spec {
		if clause == nil || !clause.Match(streamID, rc, opts) {
			return false
		}
	}
	return true
}

// Match is shorthand for Evaluate(s, ...).
func (s Spec) Match(streamID string, rc *domain.RequestContext, opts domain.Options) bool {
	return Evaluate(s, streamID, rc, opts)
}

// Describe renders the spec as a human readable conjunction.
func Describe(spec Spec) string {
	if len(spec) == 0 {
		return "<always>"
	}
	parts := make([]string, 0, len(spec))
	for _, clause := range spec {
		if clause == nil {
			parts = append(parts, "<nil>")
			continue
		}
		parts = append(parts, clause.String())
	}
	return strings.Join(parts, " AND ")
}

// FromOptions extracts the match spec from per-stream options.
// It reports false when the option is missing or has the wrong type; an
// explicitly empty spec is present and matches everything.
func FromOptions(opts domain.Options) (Spec, bool) {
	v, ok := opts[domain.KeyMatchSpec]
	if !ok || v == nil {
		return nil, false
	}
	switch s := v.(type) {
	case Spec:
		return s, true
	case []Clause:
		return Spec(s), true
	default:
		return nil, false
	}
}
