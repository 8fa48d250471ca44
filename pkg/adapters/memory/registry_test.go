package memory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/reqtrace/pkg/adapters/memory"
	"github.com/aretw0/reqtrace/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
)

func TestMemoryRegistry_Contract(t *testing.T) {
	tests.TraceRegistryContractTest(t, memory.NewRegistry())
}

func TestMemoryRegistry_ConcurrentClaims(t *testing.T) {
	reg := memory.NewRegistry()
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := reg.Claim(ctx, "owner", fmt.Sprintf("worker-%d", i))
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one claim must win")
	assert.Equal(t, 1, reg.Len())
}
