package ports

import "context"

// TraceRegistry maps owner identities to the worker tracing them.
// Claim is the single writer gate: at most one claim per owner succeeds.
type TraceRegistry interface {
	// Claim records workerID as the tracer of ownerID.
	// It returns false without error when the owner is already claimed.
	Claim(ctx context.Context, ownerID, workerID string) (bool, error)
	// Release removes the claim if it is still held by workerID.
	Release(ctx context.Context, ownerID, workerID string) error
	// Lookup returns the worker currently tracing ownerID.
	Lookup(ctx context.Context, ownerID string) (string, bool, error)
}
