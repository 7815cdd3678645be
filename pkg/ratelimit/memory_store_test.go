package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
)

func TestMemoryStore_RecordIfAllowed(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	window := time.Minute

	for i := range 3 {
		allowed, count, err := store.RecordIfAllowed(ctx, "k", now, window, 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, int64(i+1), count)
	}

	allowed, count, err := store.RecordIfAllowed(ctx, "k", now, window, 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStore_LazyPruning(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	ctx := context.Background()
	window := 50 * time.Millisecond

	base := time.Now()
	allowed, _, err := store.RecordIfAllowed(ctx, "k", base, window, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	// Within the window: full.
	allowed, _, err = store.RecordIfAllowed(ctx, "k", base.Add(10*time.Millisecond), window, 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A later "now" prunes the expired entry during the same call.
	allowed, count, err := store.RecordIfAllowed(ctx, "k", base.Add(window+time.Millisecond), window, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	const limit = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := store.RecordIfAllowed(ctx, "k", now, time.Minute, limit)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed, "exactly limit requests are admitted under contention")
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.RecordIfAllowed(ctx, "k", time.Now(), time.Minute, 5)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "k"))

	count, err := store.CountInWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)
}
