package cache

import "hash/fnv"

// ShardCount is the number of shards in a Sharded cache.
// Must be a power of 2 so shard selection is a mask.
const ShardCount = 16

const shardMask = ShardCount - 1

// Hasher computes the shard-selection hash of a key.
type Hasher[K any] func(K) uint64

// StringHasher hashes a string key with FNV-1a.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher mixes a uint64 key so that keys differing only in high bits
// still spread across shards.
func Uint64Hasher(u uint64) uint64 {
	u ^= u >> 33
	u *= 0xff51afd7ed558ccd
	u ^= u >> 33
	return u
}

// Sharded spreads entries over ShardCount independent LRU caches so that
// concurrent lookups for different keys rarely contend on one lock.
type Sharded[K comparable, V any] struct {
	shards [ShardCount]*LRU[K, V]
	hasher Hasher[K]
}

// NewSharded creates a sharded cache with perShard capacity in each shard.
// A perShard value <= 0 means unbounded shards.
func NewSharded[K comparable, V any](perShard int, hasher Hasher[K]) *Sharded[K, V] {
	c := &Sharded[K, V]{hasher: hasher}
	for i := range c.shards {
		c.shards[i] = NewLRU[K, V](perShard)
	}
	return c
}

func (c *Sharded[K, V]) shard(key K) *LRU[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get returns the value for key.
func (c *Sharded[K, V]) Get(key K) (V, bool) { return c.shard(key).Get(key) }

// Set stores value under key.
func (c *Sharded[K, V]) Set(key K, value V) { c.shard(key).Set(key, value) }

// GetOrCreate behaves like LRU.GetOrCreate on the key's shard.
func (c *Sharded[K, V]) GetOrCreate(key K, create func() (V, error)) (V, bool, error) {
	return c.shard(key).GetOrCreate(key, create)
}

// Delete removes key from its shard.
func (c *Sharded[K, V]) Delete(key K) bool { return c.shard(key).Delete(key) }

// Clear empties every shard.
func (c *Sharded[K, V]) Clear() {
	for _, s := range c.shards {
		s.Clear()
	}
}

// Len returns the number of entries across all shards.
func (c *Sharded[K, V]) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.Len()
	}
	return n
}

// Range visits every entry, shard by shard, until fn returns false.
func (c *Sharded[K, V]) Range(fn func(K, V) bool) {
	for _, s := range c.shards {
		stop := false
		s.Range(func(k K, v V) bool {
			if !fn(k, v) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}

// Stats sums the statistics of all shards.
func (c *Sharded[K, V]) Stats() Stats {
	var total Stats
	for _, s := range c.shards {
		st := s.Stats()
		total.Len += st.Len
		total.Capacity += st.Capacity
		total.Hits += st.Hits
		total.Misses += st.Misses
		total.Evictions += st.Evictions
	}
	return newStats(total.Len, total.Capacity, total.Hits, total.Misses, total.Evictions)
}

// ResetStats zeroes the counters of all shards.
func (c *Sharded[K, V]) ResetStats() {
	for _, s := range c.shards {
		s.ResetStats()
	}
}
