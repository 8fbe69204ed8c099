package kobj

// Queue is a FIFO of comparable handles backed by a growable ring buffer.
//
// It is the wait queue of a kernel object: blocked contexts are appended at
// the tail and woken from the head. Elements are plain handles, the queue
// owns its storage outright and never links through the elements.
//
// Queue does no synchronization of its own. The owner's lock must be held
// for every call.
//
// The zero value is an empty queue.
type Queue[T comparable] struct {
	buf  []T
	head int
	n    int
}

const minQueueCap = 4

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return q.n
}

// Empty reports whether the queue holds no elements.
func (q *Queue[T]) Empty() bool {
	return q.n == 0
}

// Enqueue appends v at the tail.
func (q *Queue[T]) Enqueue(v T) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[q.index(q.n)] = v
	q.n++
}

// Dequeue removes and returns the element at the head.
func (q *Queue[T]) Dequeue() (v T, ok bool) {
	if q.n == 0 {
		return v, false
	}
	v = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = q.index(1)
	q.n--
	if q.n == 0 {
		q.head = 0
	}
	return v, true
}

// Remove deletes the first occurrence of v, keeping the order of the rest.
// It reports whether v was queued.
func (q *Queue[T]) Remove(v T) bool {
	for i := 0; i < q.n; i++ {
		if q.buf[q.index(i)] != v {
			continue
		}
		// Close the gap by shifting the tail side down by one.
		for j := i; j < q.n-1; j++ {
			q.buf[q.index(j)] = q.buf[q.index(j+1)]
		}
		var zero T
		q.buf[q.index(q.n-1)] = zero
		q.n--
		if q.n == 0 {
			q.head = 0
		}
		return true
	}
	return false
}

//go:nosplit
func (q *Queue[T]) index(i int) int {
	// len(buf) is always a power of two.
	return (q.head + i) & (len(q.buf) - 1)
}

func (q *Queue[T]) grow() {
	newCap := max(minQueueCap, len(q.buf)*2)
	buf := make([]T, newCap)
	for i := 0; i < q.n; i++ {
		buf[i] = q.buf[q.index(i)]
	}
	q.buf = buf
	q.head = 0
}
