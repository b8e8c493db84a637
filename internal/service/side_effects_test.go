package service

import (
	"context"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/pkg/config"
)

type recordingSink struct {
	mu            sync.Mutex
	audits        []models.AuditLog
	notifications []models.Notification
	failFirst     bool
	failures      int
}

func (s *recordingSink) Create(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst && s.failures == 0 {
		s.failures++
		return context.DeadlineExceeded
	}
	s.audits = append(s.audits, *entry)
	return nil
}

func (s *recordingSink) auditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}

type recordingNotificationSink struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (s *recordingNotificationSink) Create(ctx context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *notification)
	return nil
}

func (s *recordingNotificationSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSideEffectDispatcherDeliversAfterCommit(t *testing.T) {
	audit := &recordingSink{}
	notifications := &recordingNotificationSink{}
	d := NewSideEffectDispatcher(audit, notifications, nil, config.SideEffectConfig{
		Workers: 1, BufferSize: 8, MaxRetries: 2, RetryDelay: 10 * time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	userID := "user-1"
	d.EmitAudit(models.AuditLog{UserID: &userID, Action: models.AuditActionApprove, Module: models.AuditModuleVacations})
	d.Notify(models.Notification{UserID: "user-1", Title: "Solicitud aprobada", Type: models.NotificationSuccess})

	waitFor(t, func() bool { return audit.auditCount() == 1 && notifications.count() == 1 })
}

func TestSideEffectDispatcherRetriesFailures(t *testing.T) {
	audit := &recordingSink{failFirst: true}
	notifications := &recordingNotificationSink{}
	d := NewSideEffectDispatcher(audit, notifications, nil, config.SideEffectConfig{
		Workers: 1, BufferSize: 8, MaxRetries: 3, RetryDelay: 10 * time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	d.EmitAudit(models.AuditLog{Action: models.AuditActionCreate, Module: models.AuditModulePermissions})

	// First attempt fails, the retry lands.
	waitFor(t, func() bool { return audit.auditCount() == 1 })
}

func TestSideEffectDispatcherRecordsDeliveryLag(t *testing.T) {
	audit := &recordingSink{}
	notifications := &recordingNotificationSink{}
	metrics := NewMetricsService()
	d := NewSideEffectDispatcher(audit, notifications, metrics, config.SideEffectConfig{
		Workers: 1, BufferSize: 8, MaxRetries: 2, RetryDelay: 10 * time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	d.Notify(models.Notification{UserID: "user-1", Title: "Solicitud aprobada", Type: models.NotificationSuccess})
	waitFor(t, func() bool { return notifications.count() == 1 })

	waitFor(t, func() bool {
		pb := &dto.Metric{}
		require.NoError(t, metrics.sideEffectLag.Write(pb))
		return pb.GetHistogram().GetSampleCount() == 1
	})
}
