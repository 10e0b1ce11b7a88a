package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry
	expiresAt time.Time
}

// sweepInterval spaces out full scans for expired entries.
const sweepInterval = time.Minute

// MemoryCache is a process-local Cache. It only deduplicates deliveries that
// reach the same instance. Expired entries are dropped by a scan that writes
// trigger at most once per sweepInterval.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryCache creates an empty cache. now defaults to time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), now: now}
}

// lookup must be called with mu held.
func (c *MemoryCache) lookup(id string) (memoryEntry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}

// sweep must be called with mu held.
func (c *MemoryCache) sweep(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
		}
	}
	c.nextSweep = now.Add(sweepInterval)
}

// Begin implements Cache.
func (c *MemoryCache) Begin(_ context.Context, id string, claimTTL time.Duration) (Claim, error) {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lookup(id); ok {
		return claimFor(e.entry), nil
	}
	now := c.now()
	c.sweep(now)
	c.entries[id] = memoryEntry{
		entry:     entry{State: entryPending},
		expiresAt: now.Add(claimTTL),
	}
	return Claim{State: StateAcquired}, nil
}

// IsProcessed implements Cache.
func (c *MemoryCache) IsProcessed(ctx context.Context, id string) (bool, error) {
	_, ok, err := c.GetCachedResult(ctx, id)
	return ok, err
}

// MarkProcessed implements Cache.
func (c *MemoryCache) MarkProcessed(_ context.Context, id string, result []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(result))
	copy(stored, result)
	now := c.now()
	c.sweep(now)
	c.entries[id] = memoryEntry{
		entry:     entry{State: entryDone, Result: stored},
		expiresAt: now.Add(resultTTL(ttl)),
	}
	return nil
}

// GetCachedResult implements Cache.
func (c *MemoryCache) GetCachedResult(_ context.Context, id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(id)
	if !ok || e.State != entryDone {
		return nil, false, nil
	}
	return e.Result, true, nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
