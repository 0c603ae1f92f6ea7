package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/queue"
	"github.com/hireloop/notify-engine/internal/service"
	"github.com/hireloop/notify-engine/internal/store"
)

// Worker is a single goroutine that continuously pulls job items from the
// priority queue and runs the dispatch engine on them. Per-channel rate
// limiting, gating, and fallbacks all happen inside the dispatcher; the
// worker only owns the job lifecycle.
type Worker struct {
	id          int
	q           *queue.PriorityQueue
	store       store.Store
	dispatcher  service.Dispatcher
	businessCtx string
	backoff     []time.Duration
	logger      *zap.Logger
}

func NewWorker(
	id int,
	q *queue.PriorityQueue,
	st store.Store,
	dispatcher service.Dispatcher,
	businessCtx string,
	backoff []time.Duration,
	logger *zap.Logger,
) *Worker {
	if len(backoff) == 0 {
		backoff = []time.Duration{5 * time.Second, 30 * time.Second, 120 * time.Second}
	}
	return &Worker{
		id: id, q: q, store: st, dispatcher: dispatcher,
		businessCtx: businessCtx, backoff: backoff, logger: logger,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	start := time.Now()
	log := w.logger.With(zap.String("job_id", item.JobID))

	job, err := w.store.GetJob(ctx, item.JobID)
	if err != nil {
		log.Error("failed to fetch job", zap.Error(err))
		return
	}

	// A job completed by an earlier delivery of the same queue item is
	// valid; skip silently.
	if job.Status == domain.JobCompleted {
		log.Debug("job already completed before processing")
		return
	}

	if err := w.store.UpdateJobStatus(ctx, job.ID, domain.JobProcessing); err != nil {
		log.Error("failed to mark as processing", zap.Error(err))
		return
	}

	results, err := w.dispatcher.Dispatch(ctx, w.businessCtx, job.Request)
	elapsed := time.Since(start)

	if err != nil {
		// Validation-class failure: nothing will change on retry.
		log.Warn("job rejected by dispatcher", zap.Error(err))
		if err := w.store.MarkJobFailed(ctx, job.ID, nil, err.Error()); err != nil {
			log.Error("failed to mark job as failed", zap.Error(err))
		}
		return
	}

	if anySucceeded(results) {
		if err := w.store.CompleteJob(ctx, job.ID, results); err != nil {
			log.Error("failed to mark job as completed", zap.Error(err))
			return
		}
		log.Info("job completed", zap.Duration("latency", elapsed))
		return
	}

	log.Warn("all channels failed", zap.Int("retry_count", job.RetryCount))
	w.handleFailure(ctx, job, results)
}

func anySucceeded(results map[domain.ChannelName]domain.SendResult) bool {
	for _, res := range results {
		if res.Success {
			return true
		}
	}
	return false
}

// handleFailure either schedules a redelivery (if retries remain) or marks
// the job as permanently failed.
//
// Redelivery schedule uses exponential backoff:
//
//	attempt 0 → backoff[0]  (default 5 s)
//	attempt 1 → backoff[1]  (default 30 s)
//	attempt 2 → backoff[2]  (default 120 s)
//	attempt N ≥ len(backoff) → last backoff entry (clamped)
func (w *Worker) handleFailure(ctx context.Context, job *domain.DispatchJob, results map[domain.ChannelName]domain.SendResult) {
	errMsg := summarize(results)

	if job.RetryCount >= job.MaxRetries {
		if err := w.store.MarkJobFailed(ctx, job.ID, results, errMsg); err != nil {
			w.logger.Error("failed to mark job as failed",
				zap.String("id", job.ID), zap.Error(err))
		}
		return
	}

	idx := job.RetryCount
	if idx >= len(w.backoff) {
		idx = len(w.backoff) - 1
	}
	nextRetry := time.Now().UTC().Add(w.backoff[idx])

	if err := w.store.ScheduleJobRetry(ctx, job.ID, job.RetryCount+1, nextRetry, errMsg); err != nil {
		w.logger.Error("failed to schedule job retry",
			zap.String("id", job.ID), zap.Error(err))
	}
}

// summarize collapses per-channel failures into one error line for the
// job record; the delivery log holds the full attempt history.
func summarize(results map[domain.ChannelName]domain.SendResult) string {
	msg := "no channel delivered"
	for ch, res := range results {
		if res.Error != "" {
			msg = string(ch) + ": " + res.Error
			break
		}
	}
	return msg
}
