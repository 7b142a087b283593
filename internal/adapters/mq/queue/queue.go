// Package queue buffers settlement batches between the round engine and the
// delivery workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/bullrun/internal/adapters/settlement"
	"github.com/okian/bullrun/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a batch. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, b settlement.Batch) bool

	// Dequeue returns a channel receiving batches as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan settlement.Batch

	// Len returns the number of queued batches.
	Len() int

	// Close stops accepting batches. Queued batches can still be dequeued.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	batches  chan settlement.Batch
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.batches = make(chan settlement.Batch, q.capacity)
	metrics.UpdateSettlementQueueSize(0)
	return q
}

// Enqueue adds a batch to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, b settlement.Batch) bool { //nolint:gocritic // hugeParam: batches travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("settlement_queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordErrorByComponent("settlement_queue", "context_cancelled")
		return false
	}

	select {
	case q.batches <- b:
		metrics.UpdateSettlementQueueSize(len(q.batches))
		return true
	default:
		metrics.RecordErrorByComponent("settlement_queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives batches as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan settlement.Batch {
	out := make(chan settlement.Batch)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-q.batches:
				if !ok {
					return
				}
				metrics.UpdateSettlementQueueSize(len(q.batches))
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of queued batches.
func (q *InMemoryQueue) Len() int {
	return len(q.batches)
}

// Close stops accepting new batches.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.batches)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
