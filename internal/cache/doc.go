// Package cache provides the thread-safe caches shared by the shader
// compiler, the pipeline caches and the sampler cache.
//
// # LRU[K, V]
//
// A mutex-guarded map with an intrusive recency list. A capacity of 0 keeps
// every entry until Delete or Clear, which is what pipeline caches want: a
// pipeline lives as long as the cache that built it.
//
//	c := cache.NewLRU[string, *Pipeline](0)
//	p, hit, err := c.GetOrCreate(key, build)
//
// # Sharded[K, V]
//
// Sixteen LRU shards selected by a key hasher, for caches that are queried
// from many goroutines at once (the shader compile cache).
//
//	c := cache.NewSharded[string, Result](64, cache.StringHasher)
//
// # Statistics
//
// Both caches count hits, misses and evictions atomically. A failed create
// function counts as a miss but stores nothing, so a later call retries.
package cache
