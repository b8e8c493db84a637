package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

type auditStore interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditLog, error)
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	repo   auditStore
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Query returns audit entries matching the filter. Admin and HR only.
func (s *AuditService) Query(ctx context.Context, filter repository.AuditFilter, actor *models.JWTClaims) ([]models.AuditLog, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleHR {
		return nil, appErrors.ErrForbidden
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, wrapInternal(err, "failed to query audit log")
	}
	return entries, nil
}
