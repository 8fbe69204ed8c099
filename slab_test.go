package kobj

import (
	"sync"
	"testing"
)

type slabItem struct {
	a, b uint64
}

func TestSlab_AllocFree(t *testing.T) {
	c := NewSlab[slabItem](WithSlabSize(4))
	p := c.Alloc()
	if p == nil {
		t.Fatal("Alloc returned nil")
	}
	if *p != (slabItem{}) {
		t.Fatalf("fresh object not zeroed: %+v", *p)
	}
	p.a, p.b = 1, 2
	c.Free(p)

	q := c.Alloc()
	if q != p {
		t.Fatal("freed storage was not reused first")
	}
	if *q != (slabItem{}) {
		t.Fatalf("reused object carries residue: %+v", *q)
	}

	st := c.Stats()
	if st.InUse != 1 || st.Allocs != 2 || st.Frees != 1 || st.Slabs != 1 {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestSlab_Grows(t *testing.T) {
	c := NewSlab[slabItem](WithSlabSize(3))
	seen := make(map[*slabItem]bool)
	for range 10 {
		p := c.Alloc()
		if seen[p] {
			t.Fatal("Alloc handed out a live object twice")
		}
		seen[p] = true
	}
	st := c.Stats()
	if st.Slabs != 4 || st.InUse != 10 || st.Free != 2 {
		t.Fatalf("Stats = %+v, want 4 slabs, 10 in use, 2 free", st)
	}
}

func TestSlab_Limit(t *testing.T) {
	c := NewSlab[slabItem](WithSlabSize(8), WithSlabLimit(3))
	var live []*slabItem
	for range 3 {
		p := c.Alloc()
		if p == nil {
			t.Fatal("Alloc failed below the limit")
		}
		live = append(live, p)
	}
	if c.Alloc() != nil {
		t.Fatal("Alloc succeeded past the limit")
	}
	if st := c.Stats(); st.Free != 0 {
		t.Fatalf("slab carved past the limit: %+v", st)
	}
	c.Free(live[0])
	if c.Alloc() == nil {
		t.Fatal("Alloc failed after a Free under the limit")
	}
}

func TestSlab_FreeNil(t *testing.T) {
	c := NewSlab[slabItem]()
	c.Free(nil)
	if st := c.Stats(); st.Frees != 0 || st.InUse != 0 {
		t.Fatalf("Free(nil) changed the cache: %+v", st)
	}
}

func TestSlab_Close(t *testing.T) {
	c := NewSlab[slabItem]()
	p := c.Alloc()
	c.Close()
	if c.Alloc() != nil {
		t.Fatal("Alloc succeeded after Close")
	}
	c.Free(p)
	st := c.Stats()
	if st.InUse != 0 || st.Free != 0 {
		t.Fatalf("Stats after Close = %+v", st)
	}
}

func TestSlab_Concurrent(t *testing.T) {
	c := NewSlab[slabItem](WithSlabSize(16))
	const (
		workers = 8
		rounds  = 500
	)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			for i := range rounds {
				p := c.Alloc()
				p.a = uint64(w)
				p.b = uint64(i)
				if p.a != uint64(w) || p.b != uint64(i) {
					t.Error("object shared between goroutines")
					return
				}
				c.Free(p)
			}
		}()
	}
	wg.Wait()
	st := c.Stats()
	if st.InUse != 0 || st.Allocs != workers*rounds || st.Frees != workers*rounds {
		t.Fatalf("Stats = %+v", st)
	}
}
