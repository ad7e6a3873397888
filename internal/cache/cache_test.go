package cache

import (
	"errors"
	"strconv"
	"sync"
	"testing"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU[string, int](10)
	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get(missing) reported a hit")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v; want 1 hit, 1 miss", st)
	}
	if st.HitRate != 0.5 {
		t.Errorf("HitRate = %v; want 0.5", st.HitRate)
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int, int](3)
	var evicted []int
	c.OnEvict(func(k, _ int) { evicted = append(evicted, k) })

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)
	c.Get(1) // 2 is now the oldest
	c.Set(4, 4)

	if _, ok := c.Peek(2); ok {
		t.Error("expected key 2 to be evicted")
	}
	for _, k := range []int{1, 3, 4} {
		if _, ok := c.Peek(k); !ok {
			t.Errorf("expected key %d to survive", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Errorf("evicted = %v; want [2]", evicted)
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d; want 1", got)
	}
}

func TestLRUUnbounded(t *testing.T) {
	c := NewLRU[int, int](0)
	for i := 0; i < 1000; i++ {
		c.Set(i, i)
	}
	if c.Len() != 1000 {
		t.Errorf("Len = %d; want 1000", c.Len())
	}
}

func TestLRUGetOrCreate(t *testing.T) {
	c := NewLRU[string, int](10)
	calls := 0

	v, hit, err := c.GetOrCreate("k", func() (int, error) { calls++; return 7, nil })
	if err != nil || hit || v != 7 {
		t.Fatalf("first GetOrCreate = %d, %v, %v", v, hit, err)
	}
	v, hit, err = c.GetOrCreate("k", func() (int, error) { calls++; return 8, nil })
	if err != nil || !hit || v != 7 {
		t.Fatalf("second GetOrCreate = %d, %v, %v", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("create called %d times; want 1", calls)
	}
}

func TestLRUGetOrCreateErrorNotCached(t *testing.T) {
	c := NewLRU[string, int](10)
	boom := errors.New("boom")

	if _, _, err := c.GetOrCreate("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed create must not be cached")
	}
	v, hit, err := c.GetOrCreate("k", func() (int, error) { return 3, nil })
	if err != nil || hit || v != 3 {
		t.Errorf("retry = %d, %v, %v; want 3, false, nil", v, hit, err)
	}
}

func TestLRUDeleteAndClear(t *testing.T) {
	c := NewLRU[int, string](0)
	removed := 0
	c.OnEvict(func(int, string) { removed++ })
	for i := 0; i < 5; i++ {
		c.Set(i, strconv.Itoa(i))
	}
	if !c.Delete(2) {
		t.Error("Delete(2) = false")
	}
	if c.Delete(2) {
		t.Error("second Delete(2) = true")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if removed != 5 {
		t.Errorf("OnEvict called %d times; want 5", removed)
	}
}

func TestLRURangeOrder(t *testing.T) {
	c := NewLRU[int, int](0)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)
	c.Get(1)

	var keys []int
	c.Range(func(k, _ int) bool { keys = append(keys, k); return true })
	want := []int{1, 3, 2}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Range order = %v; want %v", keys, want)
		}
	}
}

func TestShardedConcurrent(t *testing.T) {
	c := NewSharded[string, int](0, StringHasher)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := strconv.Itoa(i)
				v, _, err := c.GetOrCreate(key, func() (int, error) { return i, nil })
				if err != nil || v != i {
					t.Errorf("goroutine %d: GetOrCreate(%s) = %d, %v", g, key, v, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != 200 {
		t.Errorf("Len = %d; want 200", c.Len())
	}
	st := c.Stats()
	if st.Misses != 200 {
		t.Errorf("Misses = %d; want 200", st.Misses)
	}
	if st.Hits != 7*200 {
		t.Errorf("Hits = %d; want %d", st.Hits, 7*200)
	}
}

func TestShardedRangeStops(t *testing.T) {
	c := NewSharded[uint64, int](0, Uint64Hasher)
	for i := uint64(0); i < 64; i++ {
		c.Set(i, int(i))
	}
	n := 0
	c.Range(func(uint64, int) bool { n++; return n < 10 })
	if n != 10 {
		t.Errorf("Range visited %d entries; want 10", n)
	}
}
