package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned when enqueueing into a closed Inbox, and when
// dequeuing from one that is closed and empty.
var ErrQueueClosed = errors.New("queue is closed")

// Inbox is an unbounded multi-producer queue. Items enqueued before Close
// are still delivered after it.
type Inbox[T any] struct {
	mu    sync.Mutex
	items []T
	head  int

	closed atomic.Bool

	// notifyC is buffered and never closed
	notifyC chan struct{}
	// closeC is closed on Close
	closeC chan struct{}
}

// NewInbox returns an empty inbox.
func NewInbox[T any]() *Inbox[T] {
	return &Inbox[T]{
		notifyC: make(chan struct{}, 1),
		closeC:  make(chan struct{}),
	}
}

// Enqueue appends v. It never blocks.
func (q *Inbox[T]) Enqueue(v T) error {
	q.mu.Lock()
	if q.closed.Load() {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notifyC <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes the oldest item, blocking until one is available, the
// inbox is closed and empty, or ctx is done.
func (q *Inbox[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok := q.TryDequeue(); ok {
			return v, nil
		}
		if q.closed.Load() {
			// an Enqueue may have won the race with Close
			if v, ok := q.TryDequeue(); ok {
				return v, nil
			}
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.closeC:
		case <-q.notifyC:
		}
	}
}

// TryDequeue removes the oldest item without blocking.
func (q *Inbox[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// compact once the consumed prefix dominates
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Len returns the number of queued items.
func (q *Inbox[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops further Enqueue calls. It is safe to call more than once.
func (q *Inbox[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.CompareAndSwap(false, true) {
		close(q.closeC)
	}
}

// Closed reports whether Close has been called.
func (q *Inbox[T]) Closed() bool { return q.closed.Load() }
