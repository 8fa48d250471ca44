package memory

import (
	"context"
	"sync"
)

// Registry implements ports.TraceRegistry in memory.
// Safe for concurrent use; Claim is a compare-and-set under a single mutex.
type Registry struct {
	mu     sync.Mutex
	owners map[string]string // owner ID -> worker ID
}

// NewRegistry creates a new in-memory trace registry.
func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[string]string),
	}
}

// Claim records workerID as the tracer of ownerID if it is unclaimed.
func (r *Registry) Claim(ctx context.Context, ownerID, workerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.owners[ownerID]; taken {
		return false, nil
	}
	r.owners[ownerID] = workerID
	return true, nil
}

// Release drops the claim on ownerID if workerID still holds it.
func (r *Registry) Release(ctx context.Context, ownerID, workerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owners[ownerID] == workerID {
		delete(r.owners, ownerID)
	}
	return nil
}

// Lookup returns the worker tracing ownerID.
func (r *Registry) Lookup(ctx context.Context, ownerID string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.owners[ownerID]
	return id, ok, nil
}

// Len returns the number of active claims.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
