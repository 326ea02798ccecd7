// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/task"
	"github.com/imeepos/crawl-engine/internal/worker"
)

type noopFactory struct{}

func (noopFactory) Normalize(raw crawler.TaskDescriptor) (crawler.NormalizedTask, error) {
	return crawler.NormalizedTask{TaskID: raw.TaskID, Kind: crawler.TaskKindKeywordSearch}, nil
}

func (noopFactory) Create(crawler.NormalizedTask) (task.Task, error) {
	return noopTask{}, nil
}

type noopTask struct{}

func (noopTask) Run(context.Context) crawler.TaskOutcome {
	return crawler.TaskOutcome{Success: true}
}

// blockingQueue signals the first dequeue and then blocks until cancel.
type blockingQueue struct {
	started    chan struct{}
	enqueueErr error
}

func (q *blockingQueue) Enqueue(_ context.Context, _ crawler.TaskDescriptor) error {
	return q.enqueueErr
}

func (q *blockingQueue) Dequeue(ctx context.Context) (crawler.TaskDescriptor, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return crawler.TaskDescriptor{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
}

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	w := worker.New(queue, noopFactory{}, zap.NewNop())
	dispatch := New(queue, []*worker.Worker{w})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	failure := errors.New("queue full")
	dispatch := New(&blockingQueue{started: make(chan struct{}, 1), enqueueErr: failure}, nil)

	err := dispatch.Enqueue(context.Background(), crawler.TaskDescriptor{TaskID: 1})
	if err == nil || !errors.Is(err, failure) {
		t.Fatalf("expected wrapped queue error, got %v", err)
	}
}
