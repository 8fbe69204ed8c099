package kobj

import (
	"sync/atomic"
	"time"

	"github.com/llxisdsh/kobj/internal/opt"
)

// Ec is an execution context: the kernel's handle for one thread of
// control that can block on kernel objects.
//
// A goroutine owns its Ec and passes it to every blocking call; only the
// owner ever blocks on it. Any goroutine may resume it.
//
// Blocking is split in two so a wakeup that lands between "enqueued" and
// "parked" is never lost:
//
//	block()     running -> blocked, or sees released and skips parking
//	release()   * -> released, unparks the owner only if it saw blocked
//	schedule()  parks until released, then back to running
//
// The status delivered by release is readable through Status once the
// blocking call has returned.
type Ec struct {
	_ noCopy

	id     uint32
	state  atomic.Uint32
	status atomic.Uint32

	// wait is bumped under the lock of the object the context queues on.
	// A timer only acts on the wait it was armed for.
	wait atomic.Uint64

	sema opt.Sema

	// timer belongs to the owner goroutine. fired is released once its
	// callback has returned.
	timer *time.Timer
	fired opt.Sema
}

const (
	ecRunning uint32 = iota
	ecBlocked
	ecReleased
)

// timeoutOwner is an object that can time out a context queued on it.
type timeoutOwner interface {
	expire(ec *Ec, wait uint64)
}

// NewEc creates a running execution context.
func NewEc(id uint32) *Ec {
	return &Ec{id: id}
}

// ID returns the identifier given at creation.
func (ec *Ec) ID() uint32 {
	return ec.id
}

// Status returns the status delivered by the last completed blocking call.
func (ec *Ec) Status() Status {
	return Status(ec.status.Load())
}

// enqueued stamps a new wait. The caller holds the lock of the object it
// queues on.
func (ec *Ec) enqueued() uint64 {
	return ec.wait.Add(1)
}

// block prepares the context to park and reports whether it still has to.
// It returns false when release already ran for the current wait.
func (ec *Ec) block() bool {
	if ec.state.CompareAndSwap(ecRunning, ecBlocked) {
		return true
	}
	ec.state.Store(ecRunning)
	return false
}

// setTimeout arms a one-shot timer that hands the current wait back to
// owner after d.
func (ec *Ec) setTimeout(d time.Duration, owner timeoutOwner, wait uint64) {
	ec.timer = time.AfterFunc(d, func() {
		owner.expire(ec, wait)
		ec.fired.Release()
	})
}

// schedule parks the owner goroutine until release is called.
// It does not return while a fired timer callback may still hold the
// lock of the object the context waited on, so that object can be
// destroyed right away.
func (ec *Ec) schedule() {
	ec.sema.Acquire()
	ec.state.Store(ecRunning)
	if ec.timer != nil {
		if !ec.timer.Stop() {
			ec.fired.Acquire()
		}
		ec.timer = nil
	}
}

// release delivers status and makes the context runnable again. Whoever
// removed the context from a wait queue calls it exactly once.
func (ec *Ec) release(status Status) {
	ec.status.Store(uint32(status))
	if ec.state.Swap(ecReleased) == ecBlocked {
		ec.sema.Release()
	}
}

// finish records the status of a call that completed without parking.
func (ec *Ec) finish(status Status) {
	ec.status.Store(uint32(status))
}
