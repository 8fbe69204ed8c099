package kobj

import (
	"time"
)

// NoID is the id of a semaphore created without one.
const NoID = ^uint32(0)

// Saturated is the counter value of a saturated semaphore. Up on a
// saturated semaphore without waiters fails and leaves the counter alone.
const Saturated = ^uint(0)

// Sm is a blocking counting semaphore kernel object.
//
// A counter and a FIFO wait queue are guarded together by one Spinlock,
// so they are always observed and changed as a unit:
//   - Down takes a count if there is one, otherwise queues the calling
//     context at the tail and parks it.
//   - Up wakes the head of the queue with StatusSuccess, or counts if
//     nobody waits.
//   - A timer that fires for a queued context takes it out of the queue
//     and wakes it with StatusTimeout.
//
// Up and the timer race by dequeuing the same context under the lock.
// Whichever dequeues it resumes it, exactly once. The loser sees it gone
// and does nothing (the timer) or moves on to the counter (Up).
//
// The queue is non-empty only while the counter is zero.
//
// Sm objects live in a Slab and are created with NewSm and reclaimed with
// Destroy.
type Sm struct {
	_       noCopy
	lock    Spinlock
	counter uint
	queue   Queue[*Ec]

	id    uint32
	cache *Slab[Sm]
}

// NewSm allocates a semaphore from cache with the given initial counter
// and id. Running the cache dry is fatal.
func NewSm(cache *Slab[Sm], counter uint, id uint32) *Sm {
	s := allocSm(cache, counter, id)
	if s == nil {
		panic(ErrSlabExhausted)
	}
	return s
}

func allocSm(cache *Slab[Sm], counter uint, id uint32) *Sm {
	s := cache.Alloc()
	if s == nil {
		return nil
	}
	s.counter = counter
	s.id = id
	s.cache = cache
	return s
}

// Destroy returns s to its cache. No context may still use or wait on s.
// Destroying a nil Sm is a no-op.
func (s *Sm) Destroy() {
	if s == nil {
		return
	}
	s.cache.Free(s)
}

// ID returns the id s was created with.
func (s *Sm) ID() uint32 {
	return s.id
}

// Counter returns the current counter value.
func (s *Sm) Counter() uint {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.counter
}

// Waiters returns the number of contexts queued on s.
func (s *Sm) Waiters() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.queue.Len()
}

// Down takes one count, or all of them when zero is set. If the counter
// is zero it blocks ec until an Up or, when timeout is nonzero, until
// timeout elapses. The outcome is left in ec.Status().
//
// ec must be the calling goroutine's own context.
func (s *Sm) Down(ec *Ec, zero bool, timeout time.Duration) {
	s.lock.Lock()
	if s.counter != 0 {
		if zero {
			s.counter = 0
		} else {
			s.counter--
		}
		s.lock.Unlock()
		ec.finish(StatusSuccess)
		return
	}
	wait := ec.enqueued()
	s.queue.Enqueue(ec)
	s.lock.Unlock()

	if ec.block() {
		if timeout != 0 {
			ec.setTimeout(timeout, s, wait)
		}
		ec.schedule()
	}
}

// Up wakes the longest waiting context or, with nobody waiting,
// increments the counter. It returns false only if the counter is
// saturated and nobody waits.
func (s *Sm) Up() bool {
	s.lock.Lock()
	ec, ok := s.queue.Dequeue()
	if !ok {
		defer s.lock.Unlock()
		if s.counter == Saturated {
			return false
		}
		s.counter++
		return true
	}
	s.lock.Unlock()

	ec.release(StatusSuccess)
	return true
}

// Timeout wakes ec with StatusTimeout if it is still queued on s.
// It does nothing if an Up got to ec first.
func (s *Sm) Timeout(ec *Ec) {
	s.lock.Lock()
	if !s.queue.Remove(ec) {
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	ec.release(StatusTimeout)
}

// expire is Timeout for a timer armed for one particular wait of ec.
func (s *Sm) expire(ec *Ec, wait uint64) {
	s.lock.Lock()
	if ec.wait.Load() != wait || !s.queue.Remove(ec) {
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	ec.release(StatusTimeout)
}
