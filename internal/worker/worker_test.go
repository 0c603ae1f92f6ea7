package worker_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/queue"
	"github.com/hireloop/notify-engine/internal/store"
	"github.com/hireloop/notify-engine/internal/worker"
)

type stubDispatcher struct {
	results map[domain.ChannelName]domain.SendResult
	err     error
}

func (s *stubDispatcher) Dispatch(_ context.Context, _ string, _ domain.DispatchRequest) (map[domain.ChannelName]domain.SendResult, error) {
	return s.results, s.err
}

func seedJob(t *testing.T, ms *store.MockStore, retryCount int) *domain.DispatchJob {
	t.Helper()
	job := &domain.DispatchJob{
		ID: "job-1",
		Request: domain.DispatchRequest{
			Body:      "hello",
			Priority:  2,
			Recipient: "+15550001111",
			Channels:  []domain.ChannelName{domain.ChannelSMS},
		},
		Status:     domain.JobQueued,
		RetryCount: retryCount,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := ms.CreateJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return job
}

// runOne starts a worker, lets it drain the queue, and stops it.
func runOne(t *testing.T, ms *store.MockStore, q *queue.PriorityQueue, d *stubDispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewWorker(0, q, ms, d, "default", []time.Duration{time.Minute}, zap.NewNop())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		high, normal, low := q.Depths()
		if high+normal+low == 0 {
			// Give the in-flight item a moment to finish processing.
			time.Sleep(20 * time.Millisecond)
			cancel()
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue never drained")
		case <-time.After(5 * time.Millisecond):
		}
	}
	<-done
}

func TestWorker_CompletesJobOnSuccess(t *testing.T) {
	ms := store.NewMockStore()
	q := queue.New()
	job := seedJob(t, ms, 0)
	_ = q.Enqueue(queue.Item{JobID: job.ID, Priority: job.Request.Priority})

	runOne(t, ms, q, &stubDispatcher{results: map[domain.ChannelName]domain.SendResult{
		domain.ChannelSMS: {Channel: domain.ChannelSMS, Success: true, Reason: domain.ReasonDelivered},
	}})

	got, err := ms.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.JobCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if !got.Results[domain.ChannelSMS].Success {
		t.Fatal("results not persisted")
	}
}

func TestWorker_SchedulesRetryWhenAllChannelsFail(t *testing.T) {
	ms := store.NewMockStore()
	q := queue.New()
	job := seedJob(t, ms, 0)
	_ = q.Enqueue(queue.Item{JobID: job.ID, Priority: job.Request.Priority})

	runOne(t, ms, q, &stubDispatcher{results: map[domain.ChannelName]domain.SendResult{
		domain.ChannelSMS: {Channel: domain.ChannelSMS, Reason: domain.ReasonSendFailed, Error: "provider status 404"},
	}})

	got, _ := ms.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", got.RetryCount)
	}
	if got.NextRetryAt == nil || !got.NextRetryAt.After(time.Now()) {
		t.Fatal("next retry not scheduled in the future")
	}
}

func TestWorker_MarksFailedWhenRetriesExhausted(t *testing.T) {
	ms := store.NewMockStore()
	q := queue.New()
	job := seedJob(t, ms, 3) // already at MaxRetries
	_ = q.Enqueue(queue.Item{JobID: job.ID, Priority: job.Request.Priority})

	runOne(t, ms, q, &stubDispatcher{results: map[domain.ChannelName]domain.SendResult{
		domain.ChannelSMS: {Channel: domain.ChannelSMS, Reason: domain.ReasonSendFailed, Error: "provider status 500"},
	}})

	got, _ := ms.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.NextRetryAt != nil {
		t.Fatal("exhausted job must not have a next retry")
	}
	if got.ErrorMessage == nil {
		t.Fatal("expected a persisted error message")
	}
}

func TestRetryWorker_ReenqueuesDueJobs(t *testing.T) {
	ms := store.NewMockStore()
	q := queue.New()
	job := seedJob(t, ms, 0)
	due := time.Now().Add(-time.Second)
	if err := ms.ScheduleJobRetry(context.Background(), job.ID, 1, due, "boom"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw := worker.NewRetryWorker(ms, q, 10*time.Millisecond, zap.NewNop())
	done := make(chan struct{})
	go func() {
		rw.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		high, normal, low := q.Depths()
		if high+normal+low == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("due job was never re-enqueued")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	got, _ := ms.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobQueued {
		t.Fatalf("status = %s, want queued after re-enqueue", got.Status)
	}
}
