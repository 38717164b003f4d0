package queue

import (
	"context"

	"github.com/ricirt/feedhub/internal/domain"
)

// ReadyQueue is the in-process hand-off between the scheduler, which claims
// due jobs from the store, and the worker pool. Only leased jobs are ever on
// it, so its contents can be lost on restart: the reaper redelivers them once
// their lease lapses.
type ReadyQueue struct {
	items chan Item
}

func NewReadyQueue(capacity int) *ReadyQueue {
	return &ReadyQueue{items: make(chan Item, capacity)}
}

// Push places an item on the buffer.
// It is non-blocking: if the buffer is full, ErrQueueFull is returned
// immediately and the caller is expected to release the job back to the store.
func (q *ReadyQueue) Push(item Item) error {
	select {
	case q.items <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
// Returns (Item{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *ReadyQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.items:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depth returns the number of items waiting for a worker.
func (q *ReadyQueue) Depth() int {
	return len(q.items)
}

// Free returns the remaining capacity.
func (q *ReadyQueue) Free() int {
	return cap(q.items) - len(q.items)
}
