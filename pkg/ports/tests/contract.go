package tests

import (
	"context"
	"testing"

	"github.com/aretw0/reqtrace/pkg/ports"
)

// TraceRegistryContractTest is a reusable test suite that verifies if an adapter complies with ports.TraceRegistry.
func TraceRegistryContractTest(t *testing.T, reg ports.TraceRegistry) {
	t.Helper()
	ctx := context.Background()

	// 1. First claim wins
	t.Run("Claim_Exclusive", func(t *testing.T) {
		ok, err := reg.Claim(ctx, "owner-a", "worker-1")
		if err != nil {
			t.Fatalf("unexpected error claiming: %v", err)
		}
		if !ok {
			t.Fatal("expected first claim to succeed")
		}

		ok, err = reg.Claim(ctx, "owner-a", "worker-2")
		if err != nil {
			t.Fatalf("unexpected error on second claim: %v", err)
		}
		if ok {
			t.Fatal("expected second claim on the same owner to fail")
		}

		id, found, err := reg.Lookup(ctx, "owner-a")
		if err != nil || !found || id != "worker-1" {
			t.Errorf("lookup mismatch: got (%q, %v, %v), want worker-1", id, found, err)
		}
	})

	// 2. Release by a non-holder is ignored
	t.Run("Release_WrongWorker", func(t *testing.T) {
		if err := reg.Release(ctx, "owner-a", "worker-2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, found, _ := reg.Lookup(ctx, "owner-a"); !found {
			t.Error("claim must survive a release by another worker")
		}
	})

	// 3. Release by the holder frees the owner
	t.Run("Release_Holder", func(t *testing.T) {
		if err := reg.Release(ctx, "owner-a", "worker-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, found, _ := reg.Lookup(ctx, "owner-a"); found {
			t.Error("claim should be gone after release")
		}

		ok, err := reg.Claim(ctx, "owner-a", "worker-3")
		if err != nil || !ok {
			t.Errorf("expected re-claim to succeed, got (%v, %v)", ok, err)
		}
		_ = reg.Release(ctx, "owner-a", "worker-3")
	})

	// 4. Unknown owners
	t.Run("Lookup_NotFound", func(t *testing.T) {
		_, found, err := reg.Lookup(ctx, "owner-none")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found {
			t.Error("expected no claim for unknown owner")
		}
	})
}
