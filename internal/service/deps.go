package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
)

// txBeginner abstracts *sqlx.DB so workflow tests can stub transactions.
type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// effectEmitter queues post-commit audit and notification writes.
type effectEmitter interface {
	EmitAudit(entry models.AuditLog)
	Notify(notification models.Notification)
}

// employeeDirectory is the read side of the employee master data.
type employeeDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Employee, error)
	GetByUserID(ctx context.Context, userID string) (*models.Employee, error)
	List(ctx context.Context, filter repository.EmployeeFilter) ([]models.Employee, error)
	ListSubordinates(ctx context.Context, supervisorID string) ([]models.Employee, error)
}

// userDirectory resolves account rows for name display and notifications.
type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}
