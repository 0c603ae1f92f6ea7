package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hireloop/notify-engine/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) AppendDeliveryLog(ctx context.Context, e *domain.DeliveryLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_log
			(id, dispatch_id, channel, recipient, body_hash, kind, success,
			 provider_msg_id, error, pricing_model, message_type, category,
			 free_window, attempted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		e.ID, e.DispatchID, e.Channel, e.Recipient, e.BodyHash, e.Kind, e.Success,
		nullable(e.ProviderMsgID), nullable(e.Error),
		e.Cost.PricingModel, e.Cost.MessageType, e.Cost.Category,
		e.Cost.FreeWindow, e.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	return nil
}

func (s *pgStore) GetLastInboundMessage(ctx context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error) {
	var ts time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT received_at FROM inbound_messages
		WHERE channel = $1 AND sender = $2
		ORDER BY received_at DESC
		LIMIT 1`, ch, sender).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last inbound message: %w", err)
	}
	return ts, true, nil
}

func (s *pgStore) RecordInboundMessage(ctx context.Context, ch domain.ChannelName, sender string, receivedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inbound_messages (channel, sender, received_at)
		VALUES ($1,$2,$3)`, ch, sender, receivedAt)
	if err != nil {
		return fmt.Errorf("record inbound message: %w", err)
	}
	return nil
}

func (s *pgStore) CreateJob(ctx context.Context, job *domain.DispatchJob) error {
	req, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("marshal job request: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dispatch_jobs
			(id, request, status, idempotency_key, retry_count, max_retries,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		job.ID, req, job.Status, job.IdempotencyKey,
		job.RetryCount, job.MaxRetries, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idempotency_key") {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert dispatch job: %w", err)
	}
	return nil
}

const jobColumns = `
	id, request, status, idempotency_key, retry_count, max_retries,
	next_retry_at, results, error_message, created_at, updated_at`

func (s *pgStore) GetJob(ctx context.Context, id string) (*domain.DispatchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM dispatch_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (s *pgStore) GetJobByIdempotencyKey(ctx context.Context, key string) (*domain.DispatchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM dispatch_jobs WHERE idempotency_key = $1`, key)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (s *pgStore) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dispatch_jobs SET status = $1, updated_at = NOW()
		WHERE id = $2`, status, id)
	return err
}

func (s *pgStore) CompleteJob(ctx context.Context, id string, results map[domain.ChannelName]domain.SendResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal job results: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET status = 'completed', results = $1, error_message = NULL,
		    next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2`, data, id)
	return err
}

func (s *pgStore) ScheduleJobRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET status = 'failed', retry_count = $1, next_retry_at = $2,
		    error_message = $3, updated_at = NOW()
		WHERE id = $4`, retryCount, nextRetry, errMsg, id)
	return err
}

func (s *pgStore) MarkJobFailed(ctx context.Context, id string, results map[domain.ChannelName]domain.SendResult, errMsg string) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal job results: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET status = 'failed', results = $1, error_message = $2,
		    next_retry_at = NULL, updated_at = NOW()
		WHERE id = $3`, data, errMsg, id)
	return err
}

func (s *pgStore) FindDueJobRetries(ctx context.Context) ([]*domain.DispatchJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM dispatch_jobs
		WHERE status = 'failed'
		  AND retry_count < max_retries
		  AND next_retry_at <= NOW()
		LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("find due job retries: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.DispatchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ---- helpers ----

// scanJob reads a single dispatch job row from any pgx row type.
func scanJob(row pgx.Row) (*domain.DispatchJob, error) {
	var (
		j       domain.DispatchJob
		reqData []byte
		resData []byte
	)
	err := row.Scan(
		&j.ID, &reqData, &j.Status, &j.IdempotencyKey,
		&j.RetryCount, &j.MaxRetries, &j.NextRetryAt,
		&resData, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(reqData, &j.Request); err != nil {
		return nil, fmt.Errorf("unmarshal job request: %w", err)
	}
	if len(resData) > 0 {
		if err := json.Unmarshal(resData, &j.Results); err != nil {
			return nil, fmt.Errorf("unmarshal job results: %w", err)
		}
	}
	return &j, nil
}

// nullable maps "" to NULL so empty optional columns stay NULL in the log.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
