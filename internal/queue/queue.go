// Package queue provides the FIFO container behind the command queue and the
// dispatcher's in-flight list.
package queue

// Queue is a slice backed FIFO. It is not safe for concurrent use; owners
// guard it with their own mutex so that a queue mutation and the budget or
// cursor update that goes with it happen in one critical section.
type Queue[T any] struct {
	items []T
	head  int
}

// New creates a Queue with room for prealloc items.
func New[T any](prealloc int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.Length() == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.compact()

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	return q.At(0)
}

// At returns the i-th item counted from the head.
func (q *Queue[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= q.Length() {
		return zero, false
	}

	return q.items[q.head+i], true
}

// RemoveFirst removes the first item, counted from the head, for which match
// returns true.
func (q *Queue[T]) RemoveFirst(match func(T) bool) (T, bool) {
	var zero T
	for i := q.head; i < len(q.items); i++ {
		if !match(q.items[i]) {
			continue
		}

		item := q.items[i]
		if i == q.head {
			q.items[q.head] = zero
			q.head++
			q.compact()

			return item, true
		}

		copy(q.items[i:], q.items[i+1:])
		q.items[len(q.items)-1] = zero
		q.items = q.items[:len(q.items)-1]

		return item, true
	}

	return zero, false
}

// Drain removes every item and returns them in FIFO order.
func (q *Queue[T]) Drain() []T {
	out := make([]T, q.Length())
	copy(out, q.items[q.head:])
	q.Reset()

	return out
}

// Reset resets the queue to an empty state, reusing the underlying array.
func (q *Queue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *Queue[T]) IsEmpty() bool {
	return q.Length() == 0
}

// Length returns the number of items in the queue.
func (q *Queue[T]) Length() int {
	return len(q.items) - q.head
}

// compact reclaims the consumed prefix once it dominates the slice.
func (q *Queue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0

		return
	}

	if q.head >= 32 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}
