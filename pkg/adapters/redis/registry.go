package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// releaseScript deletes the claim only if it is still held by the given worker.
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Registry implements ports.TraceRegistry using Redis, so replicas sharing
// an owner namespace never attach two tracers to the same owner.
type Registry struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Registry)

// WithTTL sets the expiration of claims. Zero keeps claims until released.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix for claims.
func WithPrefix(prefix string) Option {
	return func(r *Registry) {
		r.prefix = prefix
	}
}

// New creates a new Redis registry with options.
func New(address, password string, db int, opts ...Option) *Registry {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis registry from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Registry {
	reg := &Registry{
		client: client,
		prefix: "reqtrace:owner:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(reg)
	}

	return reg
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (r *Registry) Client() *backend.Client {
	return r.client
}

func (r *Registry) key(ownerID string) string {
	return r.prefix + ownerID
}

// Claim uses SET NX so only the first worker for an owner wins.
func (r *Registry) Claim(ctx context.Context, ownerID, workerID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(ownerID), workerID, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis error claiming owner %s: %w", ownerID, err)
	}
	return ok, nil
}

// Release deletes the claim if workerID still holds it.
func (r *Registry) Release(ctx context.Context, ownerID, workerID string) error {
	if err := r.client.Eval(ctx, releaseScript, []string{r.key(ownerID)}, workerID).Err(); err != nil {
		return fmt.Errorf("redis error releasing owner %s: %w", ownerID, err)
	}
	return nil
}

// Lookup returns the worker holding the claim on ownerID.
func (r *Registry) Lookup(ctx context.Context, ownerID string) (string, bool, error) {
	id, err := r.client.Get(ctx, r.key(ownerID)).Result()
	if errors.Is(err, backend.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis error looking up owner %s: %w", ownerID, err)
	}
	return id, true, nil
}
