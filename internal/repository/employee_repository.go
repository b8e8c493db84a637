package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sigep-hr/sigep-api/internal/models"
)

// EmployeeRepository reads the employee master data the workflows depend on.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, first_name, last_name, email, vacation_days_per_year, supervisor_id, user_id, active, created_at, updated_at`

// GetByID fetches one employee row.
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE id = $1`, employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, err
	}
	return &employee, nil
}

// GetByUserID resolves the employee linked to a user account.
func (r *EmployeeRepository) GetByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE user_id = $1`, employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, userID); err != nil {
		return nil, err
	}
	return &employee, nil
}

// EmployeeFilter captures directory listing criteria.
type EmployeeFilter struct {
	SupervisorID string
	Active       *bool
	Search       string
	Limit        int
	Offset       int
}

// List returns employees matching the filter ordered by last name.
func (r *EmployeeRepository) List(ctx context.Context, filter EmployeeFilter) ([]models.Employee, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM employees`, employeeColumns))

	conditions := make([]string, 0, 3)
	if filter.SupervisorID != "" {
		args = append(args, filter.SupervisorID)
		conditions = append(conditions, fmt.Sprintf("supervisor_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY last_name, first_name")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return employees, nil
}

// ListSubordinates returns the active direct reports of a supervisor.
func (r *EmployeeRepository) ListSubordinates(ctx context.Context, supervisorID string) ([]models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE supervisor_id = $1 AND active = TRUE ORDER BY last_name, first_name`, employeeColumns)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list subordinates: %w", err)
	}
	return employees, nil
}
