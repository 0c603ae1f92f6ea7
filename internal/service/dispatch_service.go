// Package service coordinates persistence, the priority queue, and the
// dispatcher. HTTP handlers and workers depend on this layer, not on
// each other.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/queue"
	"github.com/hireloop/notify-engine/internal/store"
)

// Dispatcher is the slice of the orchestrator the service needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, businessCtx string, req domain.DispatchRequest) (map[domain.ChannelName]domain.SendResult, error)
}

// DispatchService offers two delivery paths over the same engine: a
// synchronous call that blocks until every fallback chain resolves, and
// an asynchronous job that is persisted, queued, and picked up by the
// worker pool.
type DispatchService struct {
	store      store.Store
	q          *queue.PriorityQueue
	dispatcher Dispatcher
	maxRetries int
	logger     *zap.Logger
}

func NewDispatchService(
	st store.Store,
	q *queue.PriorityQueue,
	dispatcher Dispatcher,
	maxRetries int,
	logger *zap.Logger,
) *DispatchService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &DispatchService{
		store:      st,
		q:          q,
		dispatcher: dispatcher,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// DispatchNow runs the engine synchronously and returns per-channel
// results. Used by callers that need the outcome in the response, such
// as interactive recruiter actions.
func (s *DispatchService) DispatchNow(ctx context.Context, businessCtx string, req domain.DispatchRequest) (map[domain.ChannelName]domain.SendResult, error) {
	return s.dispatcher.Dispatch(ctx, businessCtx, req)
}

// Submit validates, persists, and enqueues an asynchronous dispatch job.
//
// Idempotency: if an X-Idempotency-Key header was supplied and a job with
// that key already exists, the existing record is returned as-is. The
// caller distinguishes a repeat response by the second return value
// (true = was a duplicate).
func (s *DispatchService) Submit(ctx context.Context, req domain.DispatchRequest, idempotencyKey string) (*domain.DispatchJob, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		existing, err := s.store.GetJobByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	now := time.Now().UTC()
	job := &domain.DispatchJob{
		ID:         uuid.New().String(),
		Request:    req,
		Status:     domain.JobPending,
		MaxRetries: s.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if idempotencyKey != "" {
		job.IdempotencyKey = &idempotencyKey
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, false, fmt.Errorf("persist job: %w", err)
	}

	s.enqueue(ctx, job)
	return job, false, nil
}

// GetJob returns the persisted job, including results once processed.
func (s *DispatchService) GetJob(ctx context.Context, id string) (*domain.DispatchJob, error) {
	return s.store.GetJob(ctx, id)
}

// RecordInbound stamps a recipient's inbound message, which opens the
// conversation gate and the free billing window for that channel.
func (s *DispatchService) RecordInbound(ctx context.Context, ch domain.ChannelName, sender string, receivedAt time.Time) error {
	if !ch.IsValid() {
		return domain.ErrUnknownChannel
	}
	if sender == "" {
		return domain.ErrInvalidRecipient
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return s.store.RecordInboundMessage(ctx, ch, sender, receivedAt)
}

// enqueue places the job on the queue and updates its status to queued.
// If the queue is full the job remains pending; the retry worker will not
// re-enqueue pending jobs, so an operator alert on the queue_depth gauges
// is warranted in production. For this scope we log a warning.
func (s *DispatchService) enqueue(ctx context.Context, job *domain.DispatchJob) {
	if err := s.q.Enqueue(queue.Item{JobID: job.ID, Priority: job.Request.Priority}); err != nil {
		s.logger.Warn("queue full: job will remain pending",
			zap.String("id", job.ID), zap.Error(err))
		return
	}

	if err := s.store.UpdateJobStatus(ctx, job.ID, domain.JobQueued); err != nil {
		s.logger.Error("failed to update status to queued",
			zap.String("id", job.ID), zap.Error(err))
		return
	}
	job.Status = domain.JobQueued
}
