package audiosocket

import (
	"context"
	"sync"
	"time"
)

// OverflowPolicy selects what a full [Queue] does with an incoming value.
type OverflowPolicy int

const (
	// DropOldest evicts the head of the queue to make room. Used for
	// audio: stale frames are worthless once the pipeline falls behind.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming value. Used for DTMF: dropping a
	// digit the caller already pressed is better than reordering the ones
	// we have.
	DropNewest
)

// Queue is a bounded FIFO with a fixed overflow policy. Push never blocks;
// Pop blocks until a value arrives, the context ends, or the queue is
// closed. Safe for concurrent use.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	cap     int
	policy  OverflowPolicy
	dropped uint64
	closed  bool
	ready   chan struct{} // signals a waiting Pop; capacity 1
}

// NewQueue creates a queue holding at most capacity values.
func NewQueue[T any](capacity int, policy OverflowPolicy) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		cap:    capacity,
		policy: policy,
		ready:  make(chan struct{}, 1),
	}
}

// Push enqueues v, applying the overflow policy when full. It reports
// whether v was accepted; a DropNewest rejection and a push after Close
// both return false.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if len(q.items) >= q.cap {
		q.dropped++
		if q.policy == DropNewest {
			q.mu.Unlock()
			return false
		}
		q.items = q.items[1:]
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop dequeues the oldest value, blocking until one is available. It returns
// false when ctx ends or the queue is closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()

		var zero T
		if closed {
			// Wake any other waiter so it can observe the close too.
			q.signal()
			return zero, false
		}
		select {
		case <-ctx.Done():
			return zero, false
		case <-q.ready:
		}
	}
}

// PopTimeout is Pop with a deadline. A non-positive timeout only drains
// values that are already queued.
func (q *Queue[T]) PopTimeout(ctx context.Context, timeout time.Duration) (T, bool) {
	if timeout <= 0 {
		return q.TryPop()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return q.Pop(ctx)
}

// TryPop dequeues without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many values the overflow policy has discarded.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close marks the queue closed. Queued values remain poppable; waiting and
// future Pops return false once the queue drains. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
}
