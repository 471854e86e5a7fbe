package engine

import (
	"sync"

	"order_watch/internal/domain"
)

// Queue is the unbounded FIFO buffer between feed arrival and
// reconciliation. Push never blocks and never fails; bursts are absorbed
// here instead of on the delivery path. Items leave only through Drain,
// in arrival order, and are never revisited.
type Queue struct {
	mu    sync.Mutex
	items []*domain.OrderUpdate
}

// NewQueue creates an empty ingest queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an update to the tail.
func (q *Queue) Push(u *domain.OrderUpdate) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()
}

// Drain removes and returns up to max items from the head, in arrival
// order. Returns nil when the queue is empty.
func (q *Queue) Drain(max int) []*domain.OrderUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max <= 0 || len(q.items) == 0 {
		return nil
	}
	n := max
	if n > len(q.items) {
		n = len(q.items)
	}

	batch := make([]*domain.OrderUpdate, n)
	copy(batch, q.items[:n])

	rest := copy(q.items, q.items[n:])
	// Clear vacated slots so drained updates can be collected or pooled.
	for i := rest; i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = q.items[:rest]

	return batch
}

// Len returns the number of queued updates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
