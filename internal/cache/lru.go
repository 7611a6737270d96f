// Package cache provides a bounded key/value store with LRU eviction.
//
// Eviction removes a block of the least-recently-touched entries rather
// than a single entry, so that capacity maintenance stays cheap under
// high churn.
package cache

import (
	"container/list"
	"sync"
)

const (
	// DefaultMaxEntries bounds the cache size when no explicit capacity is given.
	DefaultMaxEntries = 1024

	// DefaultEvictBlock is the number of entries removed per eviction pass.
	DefaultEvictBlock = 64
)

// Stats reports cumulative cache behavior since creation or the last Clear.
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
	Size      int
}

type entry[V any] struct {
	key   string
	value V
}

// LRU is a bounded map with least-recently-used block eviction.
// It is safe for concurrent use.
type LRU[V any] struct {
	mu         sync.Mutex
	maxEntries int
	evictBlock int
	ll         *list.List
	items      map[string]*list.Element
	hits       int
	misses     int
	evictions  int
}

// New creates an LRU holding at most maxEntries values. When the cache is
// full, evictBlock of the oldest entries are removed in one pass. Zero or
// negative arguments fall back to the package defaults.
func New[V any](maxEntries, evictBlock int) *LRU[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if evictBlock <= 0 {
		evictBlock = DefaultEvictBlock
	}
	if evictBlock > maxEntries {
		evictBlock = maxEntries
	}
	return &LRU[V]{
		maxEntries: maxEntries,
		evictBlock: evictBlock,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the value for key and marks it most-recently-used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*entry[V]).value, true
}

// Set stores value under key, marking it most-recently-used. If the cache
// is at capacity, a block of the oldest entries is evicted first.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.maxEntries {
		c.evictOldest(c.evictBlock)
	}

	el := c.ll.PushFront(&entry[V]{key: key, value: value})
	c.items[key] = el
}

// Delete removes key if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Clear empties the cache and resets counters.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Len returns the current number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.ll.Len(),
	}
}

// evictOldest removes up to n entries from the back of the list.
// Caller must hold c.mu.
func (c *LRU[V]) evictOldest(n int) {
	for i := 0; i < n; i++ {
		el := c.ll.Back()
		if el == nil {
			return
		}
		c.ll.Remove(el)
		delete(c.items, el.Value.(*entry[V]).key)
		c.evictions++
	}
}
