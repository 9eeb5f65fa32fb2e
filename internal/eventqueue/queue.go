package eventqueue

import "sync"

// Queue is a thread-safe FIFO ring that doubles its capacity when full.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	count  int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// Stats contains queue statistics.
type Stats struct {
	Len      int   `json:"len"`
	Capacity int   `json:"capacity"`
	Pushed   int64 `json:"pushed"`
	Popped   int64 `json:"popped"`
	Resizes  int   `json:"resizes"`
}

// New creates a queue with the given initial capacity.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item. It returns false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.items) {
		q.grow()
	}

	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	q.pushed++
	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available.
// It returns false when the queue is closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// Close stops accepting items. Pending items can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:      q.count,
		Capacity: len(q.items),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Resizes:  q.resizes,
	}
}

// take pops the head. Must be called with lock held and count > 0.
func (q *Queue[T]) take() T {
	item := q.items[q.head]
	var zero T
	q.items[q.head] = zero // drop reference for GC
	q.head = (q.head + 1) % len(q.items)
	q.count--
	q.popped++
	return item
}

// grow doubles the ring, unwrapping it to start at index 0. Lock held.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.items)*2)
	n := copy(next, q.items[q.head:])
	if n < q.count {
		copy(next[n:], q.items[:q.count-n])
	}
	q.items = next
	q.head = 0
	q.resizes++
}
