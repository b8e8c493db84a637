package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

type notificationStore interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// NotificationService exposes each user's in-app inbox.
type NotificationService struct {
	repo   notificationStore
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationStore, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// List returns the caller's newest notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]dto.NotificationView, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, wrapInternal(err, "failed to list notifications")
	}
	views := make([]dto.NotificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, dto.NotificationView{
			ID:         n.ID,
			Title:      n.Title,
			Message:    n.Message,
			Type:       n.Type,
			Module:     n.Module,
			EntityType: n.EntityType,
			EntityID:   n.EntityID,
			IsRead:     n.IsRead,
			ReadAt:     n.ReadAt,
			CreatedAt:  n.CreatedAt,
		})
	}
	return views, nil
}

// UnreadCount returns the caller's unread counter.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (*dto.UnreadCountView, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, wrapInternal(err, "failed to count notifications")
	}
	return &dto.UnreadCountView{Unread: count}, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return wrapInternal(err, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return wrapInternal(err, "failed to mark notifications read")
	}
	return nil
}
