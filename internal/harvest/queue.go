package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed reports a dequeue against a drained, closed queue.
var ErrQueueClosed = errors.New("unit queue closed")

// UnitQueue is a bounded in-memory unit queue with context-aware operations.
type UnitQueue struct {
	ch      chan Unit
	closeMu sync.Mutex
	closed  bool
}

// NewUnitQueue constructs a queue with the provided capacity.
func NewUnitQueue(capacity int) *UnitQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &UnitQueue{ch: make(chan Unit, capacity)}
}

// Enqueue pushes a unit or returns when the context ends.
func (q *UnitQueue) Enqueue(ctx context.Context, unit Unit) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- unit:
		return nil
	}
}

// Dequeue pops the next unit, respecting context cancellation. A closed and
// drained queue returns ErrQueueClosed.
func (q *UnitQueue) Dequeue(ctx context.Context) (Unit, error) {
	select {
	case <-ctx.Done():
		return Unit{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case unit, ok := <-q.ch:
		if !ok {
			return Unit{}, ErrQueueClosed
		}
		return unit, nil
	}
}

// Close closes the underlying channel; pending units stay dequeueable.
func (q *UnitQueue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
