// Package worker implements the task execution loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
	"github.com/imeepos/crawl-engine/internal/task"
)

// TaskFactory normalizes descriptors and builds runnable tasks.
type TaskFactory interface {
	Normalize(raw crawler.TaskDescriptor) (crawler.NormalizedTask, error)
	Create(normalized crawler.NormalizedTask) (task.Task, error)
}

// Worker consumes task descriptors and executes them to completion.
// Validation failures are dropped, not retried; transient failures are
// reported in the outcome and re-enqueueing is the producer's call.
type Worker struct {
	queue   crawler.Queue
	factory TaskFactory
	logger  *zap.Logger
}

// New constructs a Worker.
func New(queue crawler.Queue, factory TaskFactory, logger *zap.Logger) *Worker {
	return &Worker{
		queue:   queue,
		factory: factory,
		logger:  logger,
	}
}

// Run blocks, consuming descriptors until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		desc, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, desc)
	}
}

func (w *Worker) process(ctx context.Context, desc crawler.TaskDescriptor) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	normalized, err := w.factory.Normalize(desc)
	if err != nil {
		w.logger.Error("dropping invalid task descriptor",
			zap.Int64("task_id", desc.TaskID),
			zap.Error(err))
		metrics.ObserveTask("UNKNOWN", "invalid")
		return
	}

	runnable, err := w.factory.Create(normalized)
	if err != nil {
		if errors.Is(err, crawler.ErrUnsupportedKind) {
			w.logger.Error("dropping task of unsupported kind",
				zap.Int64("task_id", normalized.TaskID),
				zap.String("kind", string(normalized.Kind)))
			metrics.ObserveTask(string(normalized.Kind), "unsupported")
			return
		}
		w.logger.Error("task creation failed",
			zap.Int64("task_id", normalized.TaskID),
			zap.Error(err))
		return
	}

	outcome := runnable.Run(ctx)
	field := zap.Skip()
	if outcome.Notes != "" {
		field = zap.String("notes", outcome.Notes)
	}
	w.logger.Info("task finished",
		zap.Int64("task_id", normalized.TaskID),
		zap.String("kind", string(normalized.Kind)),
		zap.Bool("success", outcome.Success),
		field)
}
