// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// Queue is a bounded in-memory descriptor queue with context-aware
// operations.
type Queue struct {
	ch      chan crawler.TaskDescriptor
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan crawler.TaskDescriptor, capacity),
	}
}

// Enqueue pushes a descriptor into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, desc crawler.TaskDescriptor) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- desc:
		return nil
	}
}

// Dequeue pops the next descriptor, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawler.TaskDescriptor, error) {
	select {
	case <-ctx.Done():
		return crawler.TaskDescriptor{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case desc, ok := <-q.ch:
		if !ok {
			return crawler.TaskDescriptor{}, errors.New("queue closed")
		}
		return desc, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
