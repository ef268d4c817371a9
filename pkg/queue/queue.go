package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueExports is the Redis list key for CSV export jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// StatusTTL is how long export status records are kept.
	StatusTTL = 24 * time.Hour
)

// JobType identifies the job kind.
type JobType string

const JobTypeExport JobType = "csv_export"

// ExportPayload is the payload for CSV export jobs.
type ExportPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Table          string    `json:"table"`
	RequestedBy    uuid.UUID `json:"requested_by"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Export job states.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportFailed  = "failed"
)

// ExportStatus is the progress record of one export job.
type ExportStatus struct {
	JobID          string    `json:"job_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Table          string    `json:"table"`
	Status         string    `json:"status"`
	URL            string    `json:"url,omitempty"`
	Error          string    `json:"error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ErrStatusNotFound means no status record exists for the job.
var ErrStatusNotFound = errors.New("export not found")

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func statusKey(jobID string) string { return "export:" + jobID }

// EnqueueExport enqueues a CSV export job and records it as pending.
func (q *Queue) EnqueueExport(ctx context.Context, payload ExportPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeExport,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	status := ExportStatus{JobID: job.ID, OrganizationID: payload.OrganizationID, Table: payload.Table, Status: ExportPending}
	if err := q.SetStatus(ctx, status); err != nil {
		return "", err
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return "", fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued export job", zap.String("job_id", job.ID), zap.String("table", payload.Table))
	return job.ID, nil
}

// SetStatus stores the status record of an export job.
func (q *Queue) SetStatus(ctx context.Context, st ExportStatus) error {
	st.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, statusKey(st.JobID), raw, StatusTTL).Err(); err != nil {
		return fmt.Errorf("set export status: %w", err)
	}
	return nil
}

// Status returns the status record of an export job.
func (q *Queue) Status(ctx context.Context, jobID string) (*ExportStatus, error) {
	raw, err := q.client.Get(ctx, statusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, err
	}
	var st ExportStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode export status: %w", err)
	}
	return &st, nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueExports).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. It reports whether the
// job went to the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) (dead bool, err error) {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	if err := q.client.RPush(ctx, QueueExports, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}
