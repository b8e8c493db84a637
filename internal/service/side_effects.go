package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/pkg/config"
	"github.com/sigep-hr/sigep-api/pkg/jobs"
)

// Job types handled by the side-effect dispatcher.
const (
	jobTypeAudit        = "audit"
	jobTypeNotification = "notification"
)

type auditSink interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type notificationSink interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// SideEffectDispatcher runs audit and notification writes after the owning
// transaction commits. Failures retry in the background and never reach the
// caller; a lost notification must not undo an approved request.
type SideEffectDispatcher struct {
	queue         *jobs.Queue
	audit         auditSink
	notifications notificationSink
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewSideEffectDispatcher wires the dispatcher and its worker queue.
// metrics may be nil.
func NewSideEffectDispatcher(audit auditSink, notifications notificationSink, metrics *MetricsService, cfg config.SideEffectConfig, logger *zap.Logger) *SideEffectDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &SideEffectDispatcher{
		audit:         audit,
		notifications: notifications,
		metrics:       metrics,
		logger:        logger,
	}
	d.queue = jobs.NewQueue("side-effects", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the worker pool.
func (d *SideEffectDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *SideEffectDispatcher) Stop() {
	d.queue.Stop()
}

// EmitAudit queues one audit entry. Call only after commit.
func (d *SideEffectDispatcher) EmitAudit(entry models.AuditLog) {
	d.enqueue(jobTypeAudit, entry)
}

// Notify queues one in-app notification. Call only after commit.
func (d *SideEffectDispatcher) Notify(notification models.Notification) {
	d.enqueue(jobTypeNotification, notification)
}

func (d *SideEffectDispatcher) enqueue(jobType string, payload interface{}) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		d.logger.Warn("failed to enqueue side effect", zap.String("type", jobType), zap.Error(err))
	}
}

func (d *SideEffectDispatcher) handle(ctx context.Context, job jobs.Job) error {
	if err := d.deliver(ctx, job); err != nil {
		return err
	}
	d.metrics.ObserveSideEffectLag(time.Since(job.Enqueued))
	return nil
}

func (d *SideEffectDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobTypeAudit:
		entry, ok := job.Payload.(models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload %T", job.Payload)
		}
		return d.audit.Create(ctx, &entry)
	case jobTypeNotification:
		notification, ok := job.Payload.(models.Notification)
		if !ok {
			return fmt.Errorf("unexpected notification payload %T", job.Payload)
		}
		return d.notifications.Create(ctx, &notification)
	default:
		return fmt.Errorf("unknown side effect type %s", job.Type)
	}
}
