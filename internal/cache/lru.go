// Package cache provides a generic bounded LRU cache with hit/miss
// statistics, used by the embedding cache and the semantic query cache.
package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Stats is a snapshot of a cache's usage counters.
type Stats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// HitRate returns Hits/(Hits+Misses), or 0 if there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Utilization returns Size/Capacity, or 0 if Capacity is 0.
func (s Stats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Size) / float64(s.Capacity)
}

// LRU is a fixed-capacity, thread-safe, generic least-recently-used cache.
// Gets and Adds are O(1); eviction is automatic once capacity is exceeded.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	backing  *simplelru.LRU[K, V]
	capacity int
	hits     uint64
	misses   uint64
}

// New creates an LRU with the given capacity. Capacity must be positive.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	backing, _ := simplelru.NewLRU[K, V](capacity, nil)
	return &LRU[K, V]{backing: backing, capacity: capacity}
}

// Get returns the value for key and marks it most-recently-used, updating
// hit/miss counters.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.backing.Get(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Peek returns the value for key without affecting recency or counters.
func (c *LRU[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Peek(key)
}

// Add inserts or updates key, evicting the least-recently-used entry if
// the cache is over capacity. Reports whether an eviction occurred.
func (c *LRU[K, V]) Add(key K, value V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Add(key, value)
}

// Contains reports whether key is present without affecting recency.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Contains(key)
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Remove(key)
}

// Len returns the number of entries currently cached.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Len()
}

// Keys returns all cached keys from least- to most-recently used, without
// affecting recency or counters.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Keys()
}

// Clear evicts every entry and resets statistics.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Purge()
	c.hits = 0
	c.misses = 0
}

// Stats returns a snapshot of the cache's size and hit/miss counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:     c.backing.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}
