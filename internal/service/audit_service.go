package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/pkg/jobs"
)

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditQueue writes audit entries from a background job queue. An entry the queue
// cannot take is written inline.
type AuditQueue struct {
	repo   auditLogWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditQueue builds an unstarted audit queue over repo.
func NewAuditQueue(repo auditLogWriter, logger *zap.Logger, cfg jobs.QueueConfig) *AuditQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AuditQueue{repo: repo, logger: logger}
	cfg.Logger = logger
	a.queue = jobs.NewQueue("audit", a.handle, cfg)
	return a
}

// Start launches the workers.
func (a *AuditQueue) Start(ctx context.Context) {
	a.queue.Start(ctx)
}

// Close drains pending entries.
func (a *AuditQueue) Close(ctx context.Context) error {
	return a.queue.Close(ctx)
}

// Record enqueues entry.
func (a *AuditQueue) Record(ctx context.Context, entry *models.AuditLog) error {
	err := a.queue.Enqueue(jobs.Job{ID: entry.ID, Kind: entry.Action, Payload: entry})
	if err == nil {
		return nil
	}
	a.logger.Debug("audit queue unavailable, writing inline", zap.String("action", entry.Action), zap.Error(err))
	return a.repo.CreateAuditLog(ctx, entry)
}

func (a *AuditQueue) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("audit job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return a.repo.CreateAuditLog(ctx, entry)
}
