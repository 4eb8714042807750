package pipeline

import (
	"context"
	"sync"

	"github.com/nao1215/skycrawl/internal/model"
)

// DefaultQueueCapacity is the default number of identities buffered between
// the traversal and the enrichment consumer.
const DefaultQueueCapacity = 100

// Queue is a bounded FIFO of identities awaiting enrichment.
// Enqueue is safe for concurrent producers; exactly one Enricher consumes it.
type Queue struct {
	items chan model.Identity

	// done is closed when the consumer stops receiving.
	done     chan struct{}
	stopOnce sync.Once

	// mu guards closed. Producers hold the read lock while sending so that
	// Close never closes items under a blocked sender.
	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding at most capacity identities.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		items: make(chan model.Identity, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue appends id to the queue, blocking while the queue is full.
//
// It returns ErrQueueClosed if the queue was closed or the consumer has
// stopped, and ctx.Err() if ctx is cancelled while waiting.
func (q *Queue) Enqueue(ctx context.Context, id model.Identity) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- id:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more identities will be enqueued.
// Buffered identities are still delivered. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

// Len returns the number of buffered identities.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}

// stop marks the consumer as gone so blocked and future producers fail fast.
func (q *Queue) stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
}
