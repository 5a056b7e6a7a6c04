package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"simexchange/pkg/exception"
)

// Queue is a bounded, non-blocking queue between one producer side and a
// single consumer loop.
type Queue[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	closed  bool
	dropped uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues an item without blocking. It is safe to call
// concurrently with Close.
func (q *Queue[T]) TryPublish(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		atomic.AddUint64(&q.dropped, 1)
		return exception.ErrQueueFull
	}
}

// Dropped returns how many items TryPublish rejected because the queue was full.
func (q *Queue[T]) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new items. Buffered items are still
// delivered to Run.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes items until the context is done or the queue is closed and
// drained. Items still buffered when ctx is done stay in the queue.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.ch:
			if !ok {
				return
			}
			handler(item)
		}
	}
}
