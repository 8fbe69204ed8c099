package kobj

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/llxisdsh/pb"
	"go.uber.org/zap"
)

// Handle names a semaphore created through a Kernel. It doubles as the
// semaphore's id. The zero Handle is never handed out.
type Handle uint32

// KernelConfig defines configurable options for Kernel initialization.
type KernelConfig struct {
	logger  *zap.Logger
	metrics *Metrics
	slab    []func(*SlabConfig)
}

// WithLogger sets the logger a Kernel reports object lifecycle and
// failures to. A nil logger is ignored.
func WithLogger(l *zap.Logger) func(*KernelConfig) {
	return func(c *KernelConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the instruments a Kernel updates.
func WithMetrics(m *Metrics) func(*KernelConfig) {
	return func(c *KernelConfig) {
		c.metrics = m
	}
}

// WithSlabOptions configures the Slab backing every semaphore.
func WithSlabOptions(options ...func(*SlabConfig)) func(*KernelConfig) {
	return func(c *KernelConfig) {
		c.slab = append(c.slab, options...)
	}
}

// Kernel is the handle-addressed surface over semaphore objects: the part
// a system-call dispatcher talks to.
//
// It owns the Slab all its semaphores come from and a concurrent handle
// table. Handle lookups take no lock of their own, so operations on
// different semaphores run fully in parallel.
//
// Destroying a handle while another goroutine still uses or waits on it
// is a caller error, exactly as for Sm.Destroy.
type Kernel struct {
	cache   *Slab[Sm]
	objects pb.MapOf[Handle, *Sm]
	handles atomic.Uint32
	ecs     atomic.Uint32
	log     *zap.Logger
	m       *Metrics
}

// NewKernel creates a Kernel with an empty handle table.
func NewKernel(options ...func(*KernelConfig)) *Kernel {
	cfg := KernelConfig{logger: zap.NewNop()}
	for _, o := range options {
		o(&cfg)
	}
	return &Kernel{
		cache: NewSlab[Sm](cfg.slab...),
		log:   cfg.logger,
		m:     cfg.metrics.fill(),
	}
}

// NewEc creates an execution context with a kernel-unique id.
func (k *Kernel) NewEc() *Ec {
	return NewEc(k.ecs.Add(1))
}

// CreateSm creates a semaphore with the given initial counter and returns
// its handle.
func (k *Kernel) CreateSm(counter uint) (Handle, error) {
	s := allocSm(k.cache, counter, NoID)
	if s == nil {
		k.log.Error("sm allocation failed",
			zap.Uint("counter", counter),
			zap.Int("live", k.Len()),
		)
		return 0, fmt.Errorf("create sm: %w", ErrSlabExhausted)
	}
	h := k.claim(s)
	k.m.Created.Add(1)
	k.m.Live.Add(1)
	k.log.Debug("sm created", zap.Uint32("handle", uint32(h)), zap.Uint("counter", counter))
	return h, nil
}

// claim installs s under the next free handle. Handle 0 and NoID are never
// issued, and after the counter wraps a handle that is still live is
// skipped.
func (k *Kernel) claim(s *Sm) Handle {
	for {
		h := Handle(k.handles.Add(1))
		if h == 0 || uint32(h) == NoID {
			continue
		}
		s.id = uint32(h)
		if _, loaded := k.objects.LoadOrStore(h, s); !loaded {
			return h
		}
	}
}

// DestroySm removes h from the handle table and reclaims its semaphore.
func (k *Kernel) DestroySm(h Handle) error {
	s, ok := k.objects.LoadAndDelete(h)
	if !ok {
		return k.badHandle("destroy", h)
	}
	s.Destroy()
	k.m.Destroyed.Add(1)
	k.m.Live.Add(-1)
	k.log.Debug("sm destroyed", zap.Uint32("handle", uint32(h)))
	return nil
}

// Lookup returns the semaphore h names.
func (k *Kernel) Lookup(h Handle) (*Sm, bool) {
	return k.objects.Load(h)
}

// Len returns the number of live handles.
func (k *Kernel) Len() int {
	return k.objects.Size()
}

// Up signals h. It returns ErrOverflow if the semaphore is saturated and
// nobody waits on it.
func (k *Kernel) Up(h Handle) error {
	s, ok := k.objects.Load(h)
	if !ok {
		return k.badHandle("up", h)
	}
	k.m.Ups.Add(1)
	if !s.Up() {
		k.m.Overflows.Add(1)
		k.log.Warn("sm counter saturated", zap.Uint32("handle", uint32(h)))
		return fmt.Errorf("up %d: %w", h, ErrOverflow)
	}
	return nil
}

// Down waits on h as ec, taking one count or, with zero set, all of them.
// A nonzero timeout bounds the wait; running out returns ErrTimeout.
func (k *Kernel) Down(ec *Ec, h Handle, zero bool, timeout time.Duration) error {
	s, ok := k.objects.Load(h)
	if !ok {
		return k.badHandle("down", h)
	}
	k.m.Downs.Add(1)
	s.Down(ec, zero, timeout)

	st := ec.Status()
	if st == StatusTimeout {
		k.m.Timeouts.Add(1)
		k.log.Debug("sm down timed out",
			zap.Uint32("handle", uint32(h)),
			zap.Uint32("ec", ec.ID()),
			zap.Duration("timeout", timeout),
		)
	}
	return st.Err()
}

// Timeout ends ec's wait on h with ErrTimeout if ec is still waiting.
func (k *Kernel) Timeout(h Handle, ec *Ec) error {
	s, ok := k.objects.Load(h)
	if !ok {
		return k.badHandle("timeout", h)
	}
	s.Timeout(ec)
	return nil
}

// Close destroys every remaining semaphore and tears down the Slab.
// No goroutine may use the Kernel afterwards.
func (k *Kernel) Close() {
	var live []Handle
	k.objects.Range(func(h Handle, _ *Sm) bool {
		live = append(live, h)
		return true
	})
	for _, h := range live {
		_ = k.DestroySm(h)
	}
	st := k.cache.Stats()
	k.cache.Close()
	k.log.Debug("kernel closed",
		zap.Int("destroyed", len(live)),
		zap.Int("in_use", st.InUse),
		zap.Int("slabs", st.Slabs),
		zap.Uint64("allocs", st.Allocs),
		zap.Uint64("frees", st.Frees),
	)
}

func (k *Kernel) badHandle(op string, h Handle) error {
	k.log.Debug("bad handle", zap.String("op", op), zap.Uint32("handle", uint32(h)))
	return fmt.Errorf("%s %d: %w", op, h, ErrBadHandle)
}
