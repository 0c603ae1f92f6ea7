package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/queue"
	"github.com/hireloop/notify-engine/internal/store"
)

// RetryWorker polls the database for failed jobs whose next_retry_at is
// in the past and re-enqueues them.
//
// This DB-backed approach means redeliveries survive server restarts:
// scheduled retry times are persisted, not held in memory.
type RetryWorker struct {
	store    store.Store
	q        *queue.PriorityQueue
	interval time.Duration
	logger   *zap.Logger
}

func NewRetryWorker(st store.Store, q *queue.PriorityQueue, interval time.Duration, logger *zap.Logger) *RetryWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &RetryWorker{store: st, q: q, interval: interval, logger: logger}
}

// Run ticks every interval and re-enqueues any due redeliveries.
// Stops cleanly when ctx is cancelled.
func (rw *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("retry worker started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("retry worker stopping")
			return
		case <-ticker.C:
			rw.poll(ctx)
		}
	}
}

func (rw *RetryWorker) poll(ctx context.Context) {
	jobs, err := rw.store.FindDueJobRetries(ctx)
	if err != nil {
		rw.logger.Error("retry poll error", zap.Error(err))
		return
	}

	for _, job := range jobs {
		if err := rw.q.Enqueue(queue.Item{JobID: job.ID, Priority: job.Request.Priority}); err != nil {
			rw.logger.Warn("could not re-enqueue job",
				zap.String("id", job.ID), zap.Error(err))
			continue
		}

		if err := rw.store.UpdateJobStatus(ctx, job.ID, domain.JobQueued); err != nil {
			rw.logger.Error("failed to update status after re-enqueue",
				zap.String("id", job.ID), zap.Error(err))
		}
	}

	if len(jobs) > 0 {
		rw.logger.Info("re-enqueued due redeliveries", zap.Int("count", len(jobs)))
	}
}
