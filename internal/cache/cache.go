package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/czkultura/dataserve/internal/dataset"
)

// ResolveFunc produces a fresh record for a key on cache miss.
type ResolveFunc func(ctx context.Context) (dataset.Record, error)

type entry struct {
	value     dataset.Record
	expiresAt time.Time
}

// Cache memoizes resolved dataset records per key with a TTL. Expiry is
// lazy: entries are judged stale on lookup, never evicted proactively.
// Concurrent misses for the same key share a single resolution.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	sf      singleflight.Group
	now     func() time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock builds a cache on an injected clock so expiry can be tested
// without sleeping.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// GetOrResolve returns the cached record for key if one exists and its TTL
// has not elapsed. Otherwise it runs resolve, caches a successful result for
// ttl, and returns it. Failed resolutions are never cached; the next caller
// retries. Concurrent callers missing on the same key wait for one shared
// resolve call instead of each running their own.
func (c *Cache) GetOrResolve(ctx context.Context, key string, ttl time.Duration, resolve ResolveFunc) (dataset.Record, error) {
	if rec, ok := c.lookup(key); ok {
		return rec, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// A previous flight may have filled the entry while we queued.
		if rec, ok := c.lookup(key); ok {
			return rec, nil
		}
		rec, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, rec, ttl)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(dataset.Record), nil
}

func (c *Cache) lookup(key string) (dataset.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) put(key string, rec dataset.Record, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: rec, expiresAt: c.now().Add(ttl)}
}

// Has reports whether key holds an unexpired entry.
func (c *Cache) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Invalidate drops the entry for key, forcing the next lookup to resolve.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len counts the entries that are still fresh.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if c.now().Before(e.expiresAt) {
			n++
		}
	}
	return n
}
