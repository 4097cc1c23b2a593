// Package cache provides the bounded LRU used to memoize compiled documents.
package cache

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoCapacity is returned by New when no limit is configured.
var ErrNoCapacity = errors.New("cache: a capacity limit is required")

type node[K comparable, V any] struct {
	key   K
	value V
	size  int64
	prev  *node[K, V]
	next  *node[K, V]
}

// LRU is a thread-safe least-recently-used cache bounded by entry count,
// total size, or both.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]*node[K, V]
	head  *node[K, V] // Most recently used.
	tail  *node[K, V] // Least recently used.

	maxEntries int
	maxSize    int64
	curSize    int64
	sizeOf     func(V) int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Option configures an LRU.
type Option[K comparable, V any] func(*LRU[K, V])

// WithMaxEntries bounds the number of entries.
func WithMaxEntries[K comparable, V any](n int) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.maxEntries = n
	}
}

// WithMaxSize bounds the summed size of all values as reported by sizeOf.
func WithMaxSize[K comparable, V any](limit int64, sizeOf func(V) int64) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.maxSize = limit
		c.sizeOf = sizeOf
	}
}

// New creates an LRU. At least one of WithMaxEntries or WithMaxSize must set
// a positive limit.
func New[K comparable, V any](opts ...Option[K, V]) (*LRU[K, V], error) {
	c := &LRU[K, V]{items: make(map[K]*node[K, V])}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxEntries <= 0 && c.maxSize <= 0 {
		return nil, ErrNoCapacity
	}

	return c, nil
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	c.hits.Add(1)
	c.moveToFront(n)

	return n.value, true
}

// Put inserts or replaces a value. Values larger than the size limit are
// dropped.
func (c *LRU[K, V]) Put(key K, value V) {
	size := c.measure(value)
	if c.maxSize > 0 && size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		c.curSize += size - n.size
		n.value = value
		n.size = size
		c.moveToFront(n)
		c.evict(0, false)

		return
	}

	c.evict(size, true)

	n := &node[K, V]{key: key, value: value, size: size}
	c.items[key] = n
	c.curSize += size
	c.pushFront(n)
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		c.drop(n)
	}
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Clear removes every entry. Counters are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*node[K, V])
	c.head = nil
	c.tail = nil
	c.curSize = 0
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Size      int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns current counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   len(c.items),
		Size:      c.curSize,
	}
}

func (c *LRU[K, V]) measure(value V) int64 {
	if c.sizeOf == nil {
		return 1
	}

	return c.sizeOf(value)
}

// evict drops least recently used entries until incoming bytes fit and, when
// adding, one more entry fits.
func (c *LRU[K, V]) evict(incoming int64, adding bool) {
	for c.tail != nil {
		overCount := c.maxEntries > 0 && adding && len(c.items) >= c.maxEntries
		overSize := c.maxSize > 0 && c.curSize+incoming > c.maxSize

		if !overCount && !overSize {
			return
		}

		c.drop(c.tail)
		c.evictions.Add(1)
	}
}

func (c *LRU[K, V]) drop(n *node[K, V]) {
	c.unlink(n)
	delete(c.items, n.key)
	c.curSize -= n.size
}

func (c *LRU[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}

	c.unlink(n)
	c.pushFront(n)
}

func (c *LRU[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = c.head

	if c.head != nil {
		c.head.prev = n
	}

	c.head = n

	if c.tail == nil {
		c.tail = n
	}
}

func (c *LRU[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}

	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}

	n.prev = nil
	n.next = nil
}
