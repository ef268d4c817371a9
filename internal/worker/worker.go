package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/invoica/backend/internal/resources"
	"github.com/invoica/backend/pkg/csvexport"
	"github.com/invoica/backend/pkg/queue"
	"github.com/invoica/backend/pkg/storage"
)

// DownloadTTL is how long the presigned link of a finished export stays valid.
const DownloadTTL = 24 * time.Hour

// Jobs is the queue side the processor needs.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (dead bool, err error)
	SetStatus(ctx context.Context, st queue.ExportStatus) error
}

// Store uploads finished exports.
type Store interface {
	Upload(ctx context.Context, b storage.Bucket, key, contentType string, body io.Reader, size int64) (string, error)
	PresignedDownloadURL(ctx context.Context, b storage.Bucket, key string, expires time.Duration) (string, error)
}

// ExportProcessor renders tenant tables to CSV and uploads them to the documents bucket.
type ExportProcessor struct {
	registry *resources.Registry
	store    Store
	jobs     Jobs
	logger   *zap.Logger
	backoff  time.Duration
}

// NewExportProcessor creates an export processor.
func NewExportProcessor(registry *resources.Registry, store Store, jobs Jobs, logger *zap.Logger) *ExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportProcessor{registry: registry, store: store, jobs: jobs, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one export job and returns the download URL.
func (p *ExportProcessor) Process(ctx context.Context, job *queue.Job) (string, error) {
	if job.Type != queue.JobTypeExport {
		return "", fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}
	res, ok := p.registry.Get(payload.Table)
	if !ok {
		return "", fmt.Errorf("unknown table: %s", payload.Table)
	}

	rows, err := res.List(ctx, payload.OrganizationID)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", payload.Table, err)
	}
	body, err := csvexport.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("render csv: %w", err)
	}

	key, err := storage.ObjectKey(payload.OrganizationID, fmt.Sprintf("exports/%s-%s.csv", payload.Table, job.ID))
	if err != nil {
		return "", err
	}
	if _, err := p.store.Upload(ctx, storage.BucketDocuments, key, "text/csv", strings.NewReader(body), int64(len(body))); err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	url, err := p.store.PresignedDownloadURL(ctx, storage.BucketDocuments, key, DownloadTTL)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	p.logger.Info("export completed", zap.String("job_id", job.ID), zap.String("table", payload.Table), zap.String("s3_key", key))
	return url, nil
}

// Handle processes one job and records its outcome. Failed jobs are retried
// until they reach the dead-letter queue, at which point the export is marked failed.
func (p *ExportProcessor) Handle(ctx context.Context, job *queue.Job) {
	var payload queue.ExportPayload
	_ = json.Unmarshal(job.Payload, &payload)
	status := queue.ExportStatus{JobID: job.ID, OrganizationID: payload.OrganizationID, Table: payload.Table}

	url, err := p.Process(ctx, job)
	if err == nil {
		status.Status, status.URL = queue.ExportDone, url
		if err := p.jobs.SetStatus(ctx, status); err != nil {
			p.logger.Error("record export status", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	dead, reErr := p.jobs.Retry(ctx, job)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	if dead || reErr != nil {
		status.Status, status.Error = queue.ExportFailed, err.Error()
		if err := p.jobs.SetStatus(ctx, status); err != nil {
			p.logger.Error("record export status", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("export worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		p.Handle(ctx, job)
	}
}

func (p *ExportProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
