package match

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/aretw0/reqtrace/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrInvalidClause is returned when a declarative clause cannot be decoded.
var ErrInvalidClause = errors.New("invalid match clause")

// PredicateResolver looks up named predicates referenced by declarative specs.
type PredicateResolver interface {
	Predicate(name string) (func(streamID string, rc *domain.RequestContext, opts domain.Options) bool, bool)
}

// clauseDTO is the declarative form of a single clause.
// Exactly one field must be set.
type clauseDTO struct {
	Method        *string          `mapstructure:"method"`
	Host          *string          `mapstructure:"host"`
	Path          *string          `mapstructure:"path"`
	PathPrefix    *string          `mapstructure:"path_prefix"`
	HeaderPresent *string          `mapstructure:"header_present"`
	HeaderEquals  *headerEqualsDTO `mapstructure:"header_equals"`
	PeerIP        *string          `mapstructure:"peer_ip"`
	Predicate     *string          `mapstructure:"predicate"`
}

type headerEqualsDTO struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Decode builds a Spec from generic decoded data (YAML/JSON), e.g.
//
//	- method: GET
//	- path_prefix: /api/
//	- header_equals: {name: x-trace, value: "1"}
//
// Predicate clauses are resolved by name through resolver, which may be nil
// when no predicates are referenced.
func Decode(raw []any, resolver PredicateResolver) (Spec, error) {
	spec := make(Spec, 0, len(raw))
	for i, item := range raw {
		clause, err := decodeClause(item, resolver)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		spec = append(spec, clause)
	}
	return spec, nil
}

func decodeClause(item any, resolver PredicateResolver) (Clause, error) {
	var dto clauseDTO
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &dto,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClause, err)
	}

	var clauses []Clause
	if dto.Method != nil {
		clauses = append(clauses, Method{Value: *dto.Method})
	}
	if dto.Host != nil {
		clauses = append(clauses, Host{Value: *dto.Host})
	}
	if dto.Path != nil {
		clauses = append(clauses, Path{Value: *dto.Path})
	}
	if dto.PathPrefix != nil {
		clauses = append(clauses, PathPrefix{Value: *dto.PathPrefix})
	}
	if dto.HeaderPresent != nil {
		clauses = append(clauses, HeaderPresent{Name: *dto.HeaderPresent})
	}
	if dto.HeaderEquals != nil {
		if dto.HeaderEquals.Name == "" {
			return nil, fmt.Errorf("%w: header_equals requires a name", ErrInvalidClause)
		}
		clauses = append(clauses, HeaderEquals{Name: dto.HeaderEquals.Name, Value: dto.HeaderEquals.Value})
	}
	if dto.PeerIP != nil {
		addr, err := netip.ParseAddr(*dto.PeerIP)
		if err != nil {
			return nil, fmt.Errorf("%w: peer_ip: %v", ErrInvalidClause, err)
		}
		clauses = append(clauses, PeerIP{Addr: addr.Unmap()})
	}
	if dto.Predicate != nil {
		name := *dto.Predicate
		if resolver == nil {
			return nil, fmt.Errorf("%w: predicate %q: no predicates registered", ErrInvalidClause, name)
		}
		fn, ok := resolver.Predicate(name)
		if !ok {
			return nil, fmt.Errorf("%w: predicate %q not found", ErrInvalidClause, name)
		}
		clauses = append(clauses, Predicate{Name: name, Fn: fn})
	}

	if len(clauses) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one condition, got %d", ErrInvalidClause, len(clauses))
	}
	return clauses[0], nil
}
