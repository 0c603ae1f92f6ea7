package store

import (
	"context"
	"sync"
	"time"

	"github.com/hireloop/notify-engine/internal/domain"
)

// MockStore is a hand-written, in-memory implementation of Store used in
// unit tests. No mock-generation library needed.
type MockStore struct {
	mu      sync.RWMutex
	log     []*domain.DeliveryLogEntry
	inbound map[inboundKey]time.Time
	jobs    map[string]*domain.DispatchJob

	// Optional error overrides — set in tests to simulate failure paths.
	AppendErr      error
	LastInboundErr error
}

type inboundKey struct {
	channel domain.ChannelName
	sender  string
}

func NewMockStore() *MockStore {
	return &MockStore{
		inbound: make(map[inboundKey]time.Time),
		jobs:    make(map[string]*domain.DispatchJob),
	}
}

func (m *MockStore) AppendDeliveryLog(_ context.Context, e *domain.DeliveryLogEntry) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.log = append(m.log, &clone)
	return nil
}

// LogEntries returns a snapshot of the delivery log for assertions.
func (m *MockStore) LogEntries() []*domain.DeliveryLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.DeliveryLogEntry, len(m.log))
	for i, e := range m.log {
		clone := *e
		out[i] = &clone
	}
	return out
}

func (m *MockStore) GetLastInboundMessage(_ context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error) {
	if m.LastInboundErr != nil {
		return time.Time{}, false, m.LastInboundErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.inbound[inboundKey{ch, sender}]
	return ts, ok, nil
}

func (m *MockStore) RecordInboundMessage(_ context.Context, ch domain.ChannelName, sender string, receivedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := inboundKey{ch, sender}
	if existing, ok := m.inbound[key]; !ok || receivedAt.After(existing) {
		m.inbound[key] = receivedAt
	}
	return nil
}

func (m *MockStore) CreateJob(_ context.Context, job *domain.DispatchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.IdempotencyKey != nil {
		for _, existing := range m.jobs {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *job.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *MockStore) GetJob(_ context.Context, id string) (*domain.DispatchJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (m *MockStore) GetJobByIdempotencyKey(_ context.Context, key string) (*domain.DispatchJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, job := range m.jobs {
		if job.IdempotencyKey != nil && *job.IdempotencyKey == key {
			clone := *job
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockStore) UpdateJobStatus(_ context.Context, id string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = status
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockStore) CompleteJob(_ context.Context, id string, results map[domain.ChannelName]domain.SendResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.JobCompleted
		job.Results = results
		job.ErrorMessage = nil
		job.NextRetryAt = nil
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockStore) ScheduleJobRetry(_ context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.JobFailed
		job.RetryCount = retryCount
		job.NextRetryAt = &nextRetry
		job.ErrorMessage = &errMsg
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockStore) MarkJobFailed(_ context.Context, id string, results map[domain.ChannelName]domain.SendResult, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.JobFailed
		job.Results = results
		job.ErrorMessage = &errMsg
		job.NextRetryAt = nil
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockStore) FindDueJobRetries(_ context.Context) ([]*domain.DispatchJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	var due []*domain.DispatchJob
	for _, job := range m.jobs {
		if job.Status == domain.JobFailed &&
			job.RetryCount < job.MaxRetries &&
			job.NextRetryAt != nil && !job.NextRetryAt.After(now) {
			clone := *job
			due = append(due, &clone)
		}
	}
	return due, nil
}

// compile-time check that MockStore implements Store
var _ Store = (*MockStore)(nil)
