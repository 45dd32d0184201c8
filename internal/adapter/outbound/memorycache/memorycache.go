// Package memorycache implements an in-process decision cache (spec.md
// §4.L): a size- and TTL-bounded LRU map guarded by an RWMutex. GetAll takes
// the write lock, since a hit reorders the LRU list and an expired entry is
// evicted on read.
package memorycache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lattice-abac/pdp/internal/domain/cache"
	"github.com/lattice-abac/pdp/internal/domain/response"
)

type entry struct {
	key       cache.Key
	result    response.Result
	expiresAt time.Time
	elem      *list.Element
}

// Cache is a thread-safe, bounded decision cache. Entries expire after ttl
// (zero disables expiry) and the least-recently-used entry is evicted once size exceeds
// maxEntries (zero disables the size bound).
type Cache struct {
	mu         sync.RWMutex
	entries    map[cache.Key]*entry
	lru        *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
}

// New builds a Cache. ttl <= 0 means entries never expire by age;
// maxEntries <= 0 means no size bound.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[cache.Key]*entry),
		lru:        list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// GetAll implements cache.Cache: it returns exactly one map entry per key,
// nil where there is no live (unexpired) cached result.
func (c *Cache) GetAll(_ context.Context, keys []cache.Key) (map[cache.Key]*response.Result, error) {
	out := make(map[cache.Key]*response.Result, len(keys))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		e, ok := c.entries[k]
		if !ok || (c.ttl > 0 && now.After(e.expiresAt)) {
			out[k] = nil
			if ok {
				c.evictLocked(k)
			}
			continue
		}
		c.lru.MoveToFront(e.elem)
		r := e.result
		out[k] = &r
	}
	return out, nil
}

// PutAll implements cache.Cache, inserting or refreshing entries and
// evicting the least-recently-used entry whenever the cache exceeds
// maxEntries.
func (c *Cache) PutAll(_ context.Context, entries map[cache.Key]response.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, r := range entries {
		if existing, ok := c.entries[k]; ok {
			existing.result = r
			existing.expiresAt = now.Add(c.ttl)
			c.lru.MoveToFront(existing.elem)
			continue
		}
		e := &entry{key: k, result: r, expiresAt: now.Add(c.ttl)}
		e.elem = c.lru.PushFront(e)
		c.entries[k] = e
	}

	if c.maxEntries > 0 {
		for len(c.entries) > c.maxEntries {
			back := c.lru.Back()
			if back == nil {
				break
			}
			c.evictLocked(back.Value.(*entry).key)
		}
	}
	return nil
}

// evictLocked removes k; caller must hold c.mu.
func (c *Cache) evictLocked(k cache.Key) {
	e, ok := c.entries[k]
	if !ok {
		return
	}
	c.lru.Remove(e.elem)
	delete(c.entries, k)
}

// Invalidate drops every cached entry, e.g. on policy reload (spec.md
// §4.L: "must never serve stale results for a changed policy set").
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cache.Key]*entry)
	c.lru = list.New()
}

// Size returns the current number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close implements cache.Cache; the in-memory cache holds no external
// resources to release.
func (c *Cache) Close() error { return nil }

var _ cache.Cache = (*Cache)(nil)
