package kobj

import (
	"testing"
	"time"
)

func TestEc_ReleaseBeforeBlock(t *testing.T) {
	ec := NewEc(1)
	ec.release(StatusTimeout)
	if ec.block() {
		t.Fatal("block asked to park after release already ran")
	}
	if ec.Status() != StatusTimeout {
		t.Fatalf("Status = %v, want TIMEOUT", ec.Status())
	}
	// Back to running: the next wait must park again.
	if !ec.block() {
		t.Fatal("block did not park on a fresh wait")
	}
	ec.release(StatusSuccess)
	ec.schedule()
	if ec.Status() != StatusSuccess {
		t.Fatalf("Status = %v, want SUCCESS", ec.Status())
	}
}

func TestEc_ReleaseWakesParked(t *testing.T) {
	ec := NewEc(1)
	if !ec.block() {
		t.Fatal("block did not park")
	}
	done := make(chan struct{})
	go func() {
		ec.schedule()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("schedule returned before release")
	case <-time.After(20 * time.Millisecond):
	}
	ec.release(StatusSuccess)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not return after release")
	}
}

func TestEc_WaitStamp(t *testing.T) {
	ec := NewEc(3)
	a := ec.enqueued()
	b := ec.enqueued()
	if b != a+1 {
		t.Fatalf("wait stamps %d, %d are not consecutive", a, b)
	}
	if ec.ID() != 3 {
		t.Fatalf("ID = %d, want 3", ec.ID())
	}
}

func TestStatus(t *testing.T) {
	if StatusSuccess.Err() != nil {
		t.Fatal("SUCCESS maps to an error")
	}
	if StatusTimeout.Err() != ErrTimeout {
		t.Fatal("TIMEOUT does not map to ErrTimeout")
	}
	for s, want := range map[Status]string{
		StatusSuccess: "SUCCESS",
		StatusTimeout: "TIMEOUT",
		Status(9):     "Status(9)",
	} {
		if s.String() != want {
			t.Fatalf("String() = %q, want %q", s.String(), want)
		}
	}
}

// heldOwner parks its timer callback until hold is closed, while holding
// lock, like an expire that lost the race to an Up.
type heldOwner struct {
	lock    Spinlock
	entered chan struct{}
	hold    chan struct{}
}

func (o *heldOwner) expire(*Ec, uint64) {
	o.lock.Lock()
	close(o.entered)
	<-o.hold
	o.lock.Unlock()
}

func TestEc_ScheduleWaitsForFiredTimer(t *testing.T) {
	ec := NewEc(1)
	o := &heldOwner{entered: make(chan struct{}), hold: make(chan struct{})}

	if !ec.block() {
		t.Fatal("block did not park")
	}
	ec.setTimeout(time.Millisecond, o, ec.enqueued())
	done := make(chan struct{})
	go func() {
		ec.schedule()
		close(done)
	}()

	<-o.entered
	ec.release(StatusSuccess)
	select {
	case <-done:
		t.Fatal("schedule returned while the timer callback held the lock")
	case <-time.After(20 * time.Millisecond):
	}

	close(o.hold)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not return after the timer callback finished")
	}
	if o.lock.next.Load() != o.lock.serving.Load() {
		t.Fatal("lock still held after schedule returned")
	}
}

func TestEc_StoppedTimerDoesNotBlock(t *testing.T) {
	ec := NewEc(1)
	o := &heldOwner{entered: make(chan struct{}), hold: make(chan struct{})}

	if !ec.block() {
		t.Fatal("block did not park")
	}
	ec.setTimeout(time.Hour, o, ec.enqueued())
	ec.release(StatusSuccess)

	done := make(chan struct{})
	go func() {
		ec.schedule()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule waited on a timer that never fired")
	}
}
