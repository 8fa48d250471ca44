package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/reqtrace/pkg/domain"
)

// PredicateFunc is a named condition usable from declarative match specs.
type PredicateFunc func(streamID string, rc *domain.RequestContext, opts domain.Options) bool

// CallbackFactory builds a callback from its declarative arguments.
type CallbackFactory func(args map[string]any) (domain.Callback, error)

// Registry manages the predicates and callbacks that configuration files
// can refer to by name.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]PredicateFunc
	callbacks  map[string]CallbackFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		predicates: make(map[string]PredicateFunc),
		callbacks:  make(map[string]CallbackFactory),
	}
}

// RegisterPredicate adds a predicate to the registry.
// If a predicate with the same name exists, it is overwritten.
func (r *Registry) RegisterPredicate(name string, fn PredicateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = fn
}

// RegisterCallback adds a callback factory to the registry.
// If a factory with the same name exists, it is overwritten.
func (r *Registry) RegisterCallback(name string, factory CallbackFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[name] = factory
}

// Predicate looks up a predicate by name. It satisfies match.PredicateResolver.
func (r *Registry) Predicate(name string) (func(string, *domain.RequestContext, domain.Options) bool, bool) {
	r.mu.RLock()
	fn, ok := r.predicates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return fn, true
}

// Callback looks up a factory by name and builds the callback.
// Returns an error if the callback is not found.
func (r *Registry) Callback(name string, args map[string]any) (domain.Callback, error) {
	r.mu.RLock()
	factory, ok := r.callbacks[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("callback not found: %s", name)
	}

	cb, err := factory(args)
	if err != nil {
		return nil, fmt.Errorf("callback %s: %w", name, err)
	}
	return cb, nil
}

// CallbackNames lists the registered callbacks, sorted.
func (r *Registry) CallbackNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for name := range r.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
