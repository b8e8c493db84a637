package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/repository"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

// EmployeeService exposes the employee directory read side.
type EmployeeService struct {
	employees employeeDirectory
	logger    *zap.Logger
}

// NewEmployeeService constructs the service.
func NewEmployeeService(employees employeeDirectory, logger *zap.Logger) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{employees: employees, logger: logger}
}

// Get returns one employee. Employees see themselves; supervisors see
// themselves and direct reports; HR and admins see everyone.
func (s *EmployeeService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Employee, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	employee, err := s.employees.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, wrapInternal(err, "failed to load employee")
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		return employee, nil
	case models.RoleSupervisor:
		if actor.EmployeeID == id {
			return employee, nil
		}
		if employee.SupervisorID != nil && *employee.SupervisorID == actor.EmployeeID {
			return employee, nil
		}
	case models.RoleEmployee:
		if actor.EmployeeID == id {
			return employee, nil
		}
	}
	return nil, appErrors.ErrForbidden
}

// Me resolves the employee record linked to the calling account.
func (s *EmployeeService) Me(ctx context.Context, actor *models.JWTClaims) (*models.Employee, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	employee, err := s.employees.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no employee linked to this account")
		}
		return nil, wrapInternal(err, "failed to load employee")
	}
	return employee, nil
}

// List returns the directory slice visible to the actor.
func (s *EmployeeService) List(ctx context.Context, filter repository.EmployeeFilter, actor *models.JWTClaims) ([]models.Employee, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		employees, err := s.employees.List(ctx, filter)
		if err != nil {
			return nil, wrapInternal(err, "failed to list employees")
		}
		return employees, nil
	case models.RoleSupervisor:
		employees, err := s.employees.ListSubordinates(ctx, actor.EmployeeID)
		if err != nil {
			return nil, wrapInternal(err, "failed to list subordinates")
		}
		return employees, nil
	default:
		return nil, appErrors.ErrForbidden
	}
}
