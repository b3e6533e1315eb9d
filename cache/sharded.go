// Package cache provides a sharded, concurrency-safe LRU cache.
//
// Keys are spread over DefaultShardCount shards, each with its own lock and
// recency list. Values that own resources can register an eviction callback
// so they are released when they fall out of the cache.
//
//	c := cache.NewSharded[Key, *Thing](64, cache.ComparableHasher[Key]())
//	c.OnEvict(func(_ uint64, t *Thing) { t.Release() })
//	thing, inserted := c.Add(key, newThing)
package cache

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const (
	// DefaultShardCount is the number of shards. Must be a power of 2.
	DefaultShardCount = 16

	// DefaultCapacity is the default maximum entries per shard.
	DefaultCapacity = 256

	shardMask = DefaultShardCount - 1
)

// Hasher computes the shard hash of a key.
type Hasher[K any] func(K) uint64

// ComparableHasher returns a hasher for any comparable key, seeded once per
// call. Hashes are stable for the lifetime of the returned function only.
func ComparableHasher[K comparable]() Hasher[K] {
	seed := maphash.MakeSeed()
	return func(k K) uint64 { return maphash.Comparable(seed, k) }
}

// Stats is a snapshot of cache counters.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the per-shard capacity.
	Capacity int
	// TotalCapacity is Capacity times DefaultShardCount.
	TotalCapacity int
	Hits          uint64
	Misses        uint64
	// HitRate is Hits / (Hits + Misses), or 0 before any lookup.
	HitRate   float64
	Evictions uint64
}

// ShardedCache is a thread-safe LRU cache split into DefaultShardCount
// shards.
type ShardedCache[K comparable, V any] struct {
	shards   [DefaultShardCount]*shard[K, V]
	hasher   Hasher[K]
	capacity int
	onEvict  atomic.Pointer[func(K, V)]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[K, V]
	lru     *lruList[K]
}

type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

type evicted[K comparable, V any] struct {
	key   K
	value V
}

// NewSharded creates a cache holding up to capacity entries per shard.
// If capacity <= 0, DefaultCapacity is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ShardedCache[K, V]{
		hasher:   hasher,
		capacity: capacity,
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{
			entries: make(map[K]*entry[K, V]),
			lru:     newLRUList[K](),
		}
	}
	return c
}

// OnEvict registers fn to run for every entry removed by capacity eviction
// or Clear. fn runs without any shard lock held.
func (c *ShardedCache[K, V]) OnEvict(fn func(K, V)) {
	c.onEvict.Store(&fn)
}

func (c *ShardedCache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get returns the value for key and marks it most recently used.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)

	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.MoveToFront(e.node)
	v := e.value
	s.mu.Unlock()

	c.hits.Add(1)
	return v, true
}

// Add inserts value under key unless key is already present.
// It returns the value now cached and whether value was inserted. When it
// was not, the caller still owns value.
func (c *ShardedCache[K, V]) Add(key K, value V) (V, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		s.lru.MoveToFront(e.node)
		v := e.value
		s.mu.Unlock()
		return v, false
	}
	out := c.evictLocked(s)
	s.entries[key] = &entry[K, V]{value: value, node: s.lru.PushFront(key)}
	s.mu.Unlock()

	c.notify(out)
	return value, true
}

// evictLocked makes room for one entry. s.mu must be held.
func (c *ShardedCache[K, V]) evictLocked(s *shard[K, V]) []evicted[K, V] {
	var out []evicted[K, V]
	for s.lru.Len() >= c.capacity {
		key, ok := s.lru.RemoveOldest()
		if !ok {
			break
		}
		out = append(out, evicted[K, V]{key: key, value: s.entries[key].value})
		delete(s.entries, key)
		c.evictions.Add(1)
	}
	return out
}

func (c *ShardedCache[K, V]) notify(out []evicted[K, V]) {
	if len(out) == 0 {
		return
	}
	fn := c.onEvict.Load()
	if fn == nil {
		return
	}
	for _, e := range out {
		(*fn)(e.key, e.value)
	}
}

// Delete removes key without invoking the eviction callback and returns
// the removed value. The caller owns it.
func (c *ShardedCache[K, V]) Delete(key K) (V, bool) {
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	s.lru.Remove(e.node)
	delete(s.entries, key)
	return e.value, true
}

// Clear removes every entry, passing each to the eviction callback.
func (c *ShardedCache[K, V]) Clear() {
	var out []evicted[K, V]
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			out = append(out, evicted[K, V]{key: k, value: e.value})
		}
		s.entries = make(map[K]*entry[K, V])
		s.lru.Clear()
		s.mu.Unlock()
	}
	c.notify(out)
}

// Len returns the number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (c *ShardedCache[K, V]) Capacity() int { return c.capacity }

// Stats returns current counters.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Len:           c.Len(),
		Capacity:      c.capacity,
		TotalCapacity: c.capacity * DefaultShardCount,
		Hits:          hits,
		Misses:        misses,
		HitRate:       rate,
		Evictions:     c.evictions.Load(),
	}
}
