package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRU is an in-memory response cache. It evicts least-recently-used
// entries when the total cached size exceeds the configured maximum and
// treats entries older than the TTL as misses.
type LRU struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	ttl      time.Duration
	now      func() time.Time
	metrics  Metrics

	// items maps key → list element (whose value is *lruEntry)
	items map[string]*list.Element
	order *list.List // front = most recently used
}

type lruEntry struct {
	key      string
	body     []byte
	storedAt time.Time
}

// NewLRU creates an in-memory cache holding at most maxBytes of bodies
// (default 64MB). A zero ttl keeps entries until they are evicted.
func NewLRU(maxBytes int64, ttl time.Duration) *LRU {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024 * 1024 // 64 MB
	}
	return &LRU{
		maxBytes: maxBytes,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached body for key. On hit, the entry is promoted to
// most-recently-used.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.metrics.Misses.Add(1)
		return nil, false
	}

	entry := elem.Value.(*lruEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(elem)
		c.metrics.Misses.Add(1)
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.metrics.Hits.Add(1)
	return entry.body, true
}

// Put records body under key, evicting LRU entries past the size limit.
func (c *LRU) Put(_ context.Context, key string, body []byte) {
	size := int64(len(body))

	c.mu.Lock()
	defer c.mu.Unlock()

	// If already cached, update and promote
	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*lruEntry)
		c.curBytes += size - int64(len(old.body))
		old.body = body
		old.storedAt = c.now()
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&lruEntry{key: key, body: body, storedAt: c.now()})
		c.items[key] = elem
		c.curBytes += size
	}

	// Evict LRU entries until under limit
	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		c.evictOldestLocked()
	}
	c.syncMetricsLocked()
}

// evictOldestLocked removes the least-recently-used entry.
// Caller must hold c.mu.
func (c *LRU) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
	c.metrics.Evictions.Add(1)
}

// removeLocked removes a specific element from the cache.
// Caller must hold c.mu.
func (c *LRU) removeLocked(elem *list.Element) {
	entry := elem.Value.(*lruEntry)
	c.order.Remove(elem)
	delete(c.items, entry.key)
	c.curBytes -= int64(len(entry.body))
	c.syncMetricsLocked()
}

func (c *LRU) syncMetricsLocked() {
	c.metrics.Entries.Store(int64(len(c.items)))
	c.metrics.SizeBytes.Store(c.curBytes)
}

// Size returns the current total cached size in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.removeLocked(c.order.Back())
	}
}

// Metrics returns the cache counters.
func (c *LRU) Metrics() *Metrics {
	return &c.metrics
}
