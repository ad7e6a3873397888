package cache

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the maximum number of entries (0 when unbounded).
	Capacity int
	// Hits counts lookups that found an entry.
	Hits uint64
	// Misses counts lookups that did not, including failed creates.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), or 0 before any lookup.
	HitRate float64
	// Evictions counts entries dropped by capacity pressure.
	Evictions uint64
}

func newStats(n, capacity int, hits, misses, evictions uint64) Stats {
	s := Stats{Len: n, Capacity: capacity, Hits: hits, Misses: misses, Evictions: evictions}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}
