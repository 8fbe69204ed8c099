package kobj

import (
	"errors"
	"unsafe"

	"github.com/llxisdsh/kobj/internal/opt"
)

// ErrSlabExhausted is returned when a Slab cannot hand out another object,
// either because its limit is reached or because it was closed.
var ErrSlabExhausted = errors.New("kobj: slab cache exhausted")

const defaultSlabSize = 64

// SlabConfig defines configurable options for Slab initialization.
type SlabConfig struct {
	// size is the number of objects carved out of one backing slab.
	size int

	// limit caps the number of live objects. Zero means unbounded.
	limit int
}

// WithSlabSize sets how many objects each backing slab holds.
// Values below one are ignored.
func WithSlabSize(n int) func(*SlabConfig) {
	return func(c *SlabConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithSlabLimit caps the number of objects that may be live at once.
// Alloc fails once the cap is reached. Zero or negative means unbounded.
func WithSlabLimit(n int) func(*SlabConfig) {
	return func(c *SlabConfig) {
		c.limit = max(n, 0)
	}
}

// SlabStats is a point-in-time view of a Slab.
type SlabStats struct {
	InUse  int    // objects handed out and not yet freed
	Free   int    // objects ready for reuse without growing
	Slabs  int    // backing slabs allocated so far
	Allocs uint64 // successful Alloc calls
	Frees  uint64 // Free calls that returned an object
}

// Slab is a fixed-size object cache.
//
// Objects are carved out of backing slabs of WithSlabSize objects each,
// so steady-state allocation never reaches the general-purpose allocator.
// Freed objects are zeroed and reused last-in first-out, which hands the
// most recently touched (cache-hot) storage back first.
//
// A Slab has its own lock, independent of the lock of any object it
// stores. It is shared by every object of one type for the lifetime of
// the kernel: NewSlab starts that lifetime and Close ends it.
type Slab[T any] struct {
	_    noCopy
	lock Spinlock
	_    [opt.CacheLineSize_ - unsafe.Sizeof(Spinlock{})%opt.CacheLineSize_]byte

	free   []*T
	slabs  [][]T
	size   int
	limit  int
	inUse  int
	allocs uint64
	frees  uint64
	closed bool
}

// NewSlab creates an empty Slab. No storage is reserved until the first
// Alloc.
func NewSlab[T any](options ...func(*SlabConfig)) *Slab[T] {
	cfg := SlabConfig{size: defaultSlabSize}
	for _, o := range options {
		o(&cfg)
	}
	return &Slab[T]{size: cfg.size, limit: cfg.limit}
}

// Alloc returns zeroed storage for one object, or nil when the Slab is
// exhausted or closed.
func (c *Slab[T]) Alloc() *T {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed || (c.limit > 0 && c.inUse >= c.limit) {
		return nil
	}
	if len(c.free) == 0 {
		c.grow()
	}
	p := c.free[len(c.free)-1]
	c.free[len(c.free)-1] = nil
	c.free = c.free[:len(c.free)-1]
	c.inUse++
	c.allocs++
	return p
}

// Free zeroes p and returns it to the cache. A nil p is ignored.
// Freeing an object twice, or one that did not come from this Slab,
// corrupts the cache.
func (c *Slab[T]) Free(p *T) {
	if p == nil {
		return
	}
	var zero T
	*p = zero

	c.lock.Lock()
	defer c.lock.Unlock()
	c.inUse--
	c.frees++
	if !c.closed {
		c.free = append(c.free, p)
	}
}

// Stats returns counters describing the cache.
func (c *Slab[T]) Stats() SlabStats {
	c.lock.Lock()
	defer c.lock.Unlock()
	return SlabStats{
		InUse:  c.inUse,
		Free:   len(c.free),
		Slabs:  len(c.slabs),
		Allocs: c.allocs,
		Frees:  c.frees,
	}
}

// Close tears the cache down. Later Alloc calls return nil and freed
// objects are dropped. Objects still in use stay valid until freed.
func (c *Slab[T]) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	c.free = nil
	c.slabs = nil
}

func (c *Slab[T]) grow() {
	n := c.size
	if c.limit > 0 {
		// Never carve more than the limit allows overall.
		n = max(min(n, c.limit-c.inUse), 1)
	}
	s := make([]T, n)
	c.slabs = append(c.slabs, s)
	// Push in reverse so Alloc hands out slab order.
	for i := n - 1; i >= 0; i-- {
		c.free = append(c.free, &s[i])
	}
}
