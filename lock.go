package kobj

import (
	"sync/atomic"
	"time"
	_ "unsafe" // for linkname
)

// Spinlock is a fair, FIFO ticket spinlock.
//
// Every kernel object carries its own Spinlock, so operations on different
// objects never contend. Goroutines acquire the lock in the exact order they
// called Lock(), which keeps the order waiters reach a wait queue equal to
// the order they tried to block.
//
// Implementation:
// It uses the classic "ticket" algorithm.
//   - Lock(): Takes a ticket number. Spins/Sleeps until `serving` == `my_ticket`.
//   - Unlock(): Increments `serving`, allowing the next ticket holder to proceed.
//
// It must only guard short critical sections that never park. Holding a
// Spinlock across a blocking call stalls every later ticket holder.
//
// The zero value is an unlocked Spinlock.
type Spinlock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

// Lock acquires the lock. Blocks until the lock is available.
func (l *Spinlock) Lock() {
	my := l.next.Add(1) - 1
	var spins int
	for l.serving.Load() != my {
		delay(&spins)
	}
}

// Unlock releases the lock.
func (l *Spinlock) Unlock() {
	l.serving.Add(1)
}

// ============================================================================
// Locker Utilities
// ============================================================================

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
//
// Note that it must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

func trySpin(spins *int) bool {
	if runtime_canSpin(*spins) {
		*spins++
		runtime_doSpin()
		return true
	}
	return false
}

func delay(spins *int) {
	if trySpin(spins) {
		return
	}
	*spins = 0
	// A short sleep backs off far better than Gosched under heavy
	// contention. 500µs matches folly's Sleeper.
	time.Sleep(500 * time.Microsecond)
}

// nolint:all
//
//go:linkname runtime_canSpin sync.runtime_canSpin
//goland:noinspection ALL
func runtime_canSpin(i int) bool

// nolint:all
//
//go:linkname runtime_doSpin sync.runtime_doSpin
//goland:noinspection ALL
func runtime_doSpin()
