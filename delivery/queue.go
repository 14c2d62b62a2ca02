// Package delivery carries normalized transaction batches from a sync
// session to its consumers. The queue is unbounded on purpose: a slow
// consumer must never exert backpressure on storage (the bounded write
// queue owns that concern), it just drains at its own pace.
package delivery

import (
	"sync"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// Queue is a thread-safe FIFO of transaction batches. Closing the queue
// is the end-of-stream sentinel; pushes after Close are rejected.
type Queue struct {
	mu      sync.Mutex
	batches [][]entities.Transaction
	closed  bool
	signal  chan struct{} // size-1, coalesces availability signals
}

func NewQueue() *Queue {
	return &Queue{
		batches: make([][]entities.Transaction, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Push appends a batch to the back of the queue.
// Returns false if the queue is closed.
func (q *Queue) Push(batch []entities.Transaction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.batches = append(q.batches, batch)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryPop removes and returns the front batch without blocking.
// Returns (nil, false) when the queue is empty.
func (q *Queue) TryPop() ([]entities.Transaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return nil, false
	}

	batch := q.batches[0]
	// release the slot so the backing array does not retain the batch
	q.batches[0] = nil
	if len(q.batches) == 1 {
		q.batches = q.batches[:0]
	} else {
		q.batches = q.batches[1:]
	}

	return batch, true
}

// Wait returns a channel that signals when batches may be available or
// the queue has been closed. Use together with TryPop in a select loop.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Close marks the queue as complete and wakes all waiters. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether the sentinel has been observed. Batches pushed
// before Close remain poppable afterwards.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of undrained batches.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}
