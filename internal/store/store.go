package store

import (
	"context"
	"time"

	"github.com/hireloop/notify-engine/internal/domain"
)

// Store defines all persistence operations the engine needs. The pgx
// implementation is in pg_store.go; tests use a hand-written in-memory
// mock (mock_store.go).
//
// The delivery log is append-only: the engine writes entries and never
// reads them back. Inbound messages are recorded by provider webhooks and
// read by the conversation gate and the free-window tracker.
type Store interface {
	// AppendDeliveryLog records one send attempt. A failed append must not
	// fail the dispatch that produced it; callers log and move on.
	AppendDeliveryLog(ctx context.Context, e *domain.DeliveryLogEntry) error

	// GetLastInboundMessage returns the timestamp of the most recent inbound
	// message from sender on the given channel. found is false when the
	// sender has never messaged us there.
	GetLastInboundMessage(ctx context.Context, ch domain.ChannelName, sender string) (ts time.Time, found bool, err error)

	// RecordInboundMessage stores an inbound-message observation.
	RecordInboundMessage(ctx context.Context, ch domain.ChannelName, sender string, receivedAt time.Time) error

	// Async dispatch jobs.
	CreateJob(ctx context.Context, job *domain.DispatchJob) error
	GetJob(ctx context.Context, id string) (*domain.DispatchJob, error)
	GetJobByIdempotencyKey(ctx context.Context, key string) (*domain.DispatchJob, error)
	UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error
	CompleteJob(ctx context.Context, id string, results map[domain.ChannelName]domain.SendResult) error
	ScheduleJobRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error
	MarkJobFailed(ctx context.Context, id string, results map[domain.ChannelName]domain.SendResult, errMsg string) error
	FindDueJobRetries(ctx context.Context) ([]*domain.DispatchJob, error)
}
