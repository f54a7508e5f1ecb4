package testutil

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_AreOrderedUUIDv7(t *testing.T) {
	ids := NewSequentialIDs()
	first := ids.Next()
	second := ids.Next()

	assert.Equal(t, "00000000-0000-7000-8000-000000000001", first)
	assert.Less(t, first, second)

	parsed, err := uuid.Parse(second)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, int64(2), ids.Issued())
}

func TestSequentialIDs_Reset(t *testing.T) {
	ids := NewSequentialIDs()
	first := ids.Next()
	ids.Next()

	ids.Reset()
	assert.Equal(t, int64(0), ids.Issued())
	assert.Equal(t, first, ids.Next())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs()
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				id := ids.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, int64(numGoroutines*callsPerGoroutine), ids.Issued())
}
