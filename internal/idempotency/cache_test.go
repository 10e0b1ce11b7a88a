package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// backend bundles a cache with a way to move its notion of time forward.
type backend struct {
	name    string
	cache   Cache
	advance func(time.Duration)
}

func backends(t *testing.T) []backend {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return []backend{
		{name: "memory", cache: NewMemoryCache(clock.Now), advance: clock.Advance},
		{name: "redis", cache: NewRedisCache(client), advance: mr.FastForward},
	}
}

func TestDuplicateWithinTTLReturnsCachedResult(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			sideEffects := 0
			process := func() []byte {
				claim, err := b.cache.Begin(ctx, "req-1", time.Minute)
				require.NoError(t, err)
				if claim.State == StateDone {
					return claim.Result
				}
				require.Equal(t, StateAcquired, claim.State)
				sideEffects++
				result := []byte(`{"updated":1}`)
				require.NoError(t, b.cache.MarkProcessed(ctx, "req-1", result, time.Hour))
				return result
			}

			first := process()
			b.advance(30 * time.Minute)
			second := process()

			assert.Equal(t, 1, sideEffects)
			assert.Equal(t, first, second)

			processed, err := b.cache.IsProcessed(ctx, "req-1")
			require.NoError(t, err)
			assert.True(t, processed)
		})
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.cache.MarkProcessed(ctx, "req-2", []byte("ok"), time.Hour))

			b.advance(time.Hour + time.Second)

			processed, err := b.cache.IsProcessed(ctx, "req-2")
			require.NoError(t, err)
			assert.False(t, processed)

			claim, err := b.cache.Begin(ctx, "req-2", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, StateAcquired, claim.State)
		})
	}
}

func TestConcurrentDeliveryIsInProgress(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			first, err := b.cache.Begin(ctx, "req-3", time.Minute)
			require.NoError(t, err)
			require.Equal(t, StateAcquired, first.State)

			second, err := b.cache.Begin(ctx, "req-3", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, StateInProgress, second.State)

			_, ok, err := b.cache.GetCachedResult(ctx, "req-3")
			require.NoError(t, err)
			assert.False(t, ok, "a pending claim has no result")
		})
	}
}

func TestClearAllowsReprocessing(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			_, err := b.cache.Begin(ctx, "req-4", time.Minute)
			require.NoError(t, err)
			require.NoError(t, b.cache.Clear(ctx, "req-4"))

			claim, err := b.cache.Begin(ctx, "req-4", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, StateAcquired, claim.State)
		})
	}
}

func TestAbandonedClaimExpires(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			_, err := b.cache.Begin(ctx, "req-5", time.Minute)
			require.NoError(t, err)

			b.advance(2 * time.Minute)

			claim, err := b.cache.Begin(ctx, "req-5", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, StateAcquired, claim.State)
		})
	}
}

func TestMemoryCacheBeginIsAtomic(t *testing.T) {
	cache := NewMemoryCache(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claim, err := cache.Begin(ctx, "req-race", time.Minute)
			if err == nil && claim.State == StateAcquired {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}

func TestMemoryCacheDropsExpiredEntriesOnWrite(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(clock.Now)
	ctx := context.Background()

	for i := range 500 {
		require.NoError(t, cache.MarkProcessed(ctx, fmt.Sprintf("delivery-%d", i), []byte("ok"), time.Hour))
	}
	require.Len(t, cache.entries, 500)

	clock.Advance(48 * time.Hour)
	claim, err := cache.Begin(ctx, "delivery-new", time.Minute)
	require.NoError(t, err)
	require.Equal(t, StateAcquired, claim.State)

	assert.Len(t, cache.entries, 1)
}

func TestNonPositiveTTLUsesDefault(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.cache.MarkProcessed(ctx, "req-6", []byte("ok"), 0))

			b.advance(time.Hour)
			processed, err := b.cache.IsProcessed(ctx, "req-6")
			require.NoError(t, err)
			assert.True(t, processed)

			b.advance(DefaultResultTTL)
			processed, err = b.cache.IsProcessed(ctx, "req-6")
			require.NoError(t, err)
			assert.False(t, processed)
		})
	}
}
