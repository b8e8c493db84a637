package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sigep-hr/sigep-api/internal/models"
)

// PermissionRepository persists the permission type catalog and the
// permission requests drawing against it.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionTypeColumns = `id, name, description, max_days_per_year, requires_document, is_paid, is_active, created_at, updated_at`

const permissionRequestColumns = `id, employee_id, permission_type_id, start_date, end_date, start_time, end_time,
       is_partial_day, duration_days, reason, document_url, status,
       approved_by_user_id, approved_at, approver_comments, created_at, updated_at`

// ListTypes returns catalog entries, optionally only the active ones.
func (r *PermissionRepository) ListTypes(ctx context.Context, activeOnly bool) ([]models.PermissionType, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM permission_types`, permissionTypeColumns))
	if activeOnly {
		builder.WriteString(" WHERE is_active = TRUE")
	}
	builder.WriteString(" ORDER BY name")
	var types []models.PermissionType
	if err := r.db.SelectContext(ctx, &types, builder.String()); err != nil {
		return nil, fmt.Errorf("list permission types: %w", err)
	}
	return types, nil
}

// GetTypeByID fetches one catalog entry.
func (r *PermissionRepository) GetTypeByID(ctx context.Context, id string) (*models.PermissionType, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_types WHERE id = $1`, permissionTypeColumns)
	var permType models.PermissionType
	if err := r.db.GetContext(ctx, &permType, query, id); err != nil {
		return nil, err
	}
	return &permType, nil
}

// AcquireCapLockTx serializes cap checks for one employee+type+year using a
// transaction-scoped advisory lock. The cap is an aggregate over many rows,
// so a row lock cannot protect it.
func (r *PermissionRepository) AcquireCapLockTx(ctx context.Context, tx *sqlx.Tx, employeeID, typeID string, year int) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`
	if _, err := tx.ExecContext(ctx, query, employeeID, fmt.Sprintf("%s:%d", typeID, year)); err != nil {
		return fmt.Errorf("acquire cap lock: %w", err)
	}
	return nil
}

// SumDaysForYearTx totals Pendiente plus Aprobada durations of one type in
// one year. Call under the cap lock.
func (r *PermissionRepository) SumDaysForYearTx(ctx context.Context, tx *sqlx.Tx, employeeID, typeID string, year int) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(duration_days), 0) FROM permission_requests
	WHERE employee_id = $1 AND permission_type_id = $2
	AND EXTRACT(YEAR FROM start_date) = $3
	AND status IN ('Pendiente', 'Aprobada')`
	var total decimal.Decimal
	if err := tx.GetContext(ctx, &total, query, employeeID, typeID, year); err != nil {
		return decimal.Zero, fmt.Errorf("sum permission days: %w", err)
	}
	return total, nil
}

// HasDateConflictTx reports whether a live permission of the employee
// already starts on the given date. With fullDayOnly set, only existing
// full-day rows count; partial slices of the same date are ignored.
func (r *PermissionRepository) HasDateConflictTx(ctx context.Context, tx *sqlx.Tx, employeeID string, startDate time.Time, fullDayOnly bool) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM permission_requests
	WHERE employee_id = $1 AND start_date = $2
	AND ($3 = FALSE OR is_partial_day = FALSE)
	AND status IN ('Pendiente', 'EnRevision', 'Aprobada'))`
	var exists bool
	if err := tx.GetContext(ctx, &exists, query, employeeID, startDate, fullDayOnly); err != nil {
		return false, fmt.Errorf("check same day conflict: %w", err)
	}
	return exists, nil
}

// CreateTx inserts a new permission request inside the caller's transaction.
func (r *PermissionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.PermissionRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.StatusPendiente
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO permission_requests
	(id, employee_id, permission_type_id, start_date, end_date, start_time, end_time, is_partial_day, duration_days, reason, document_url, status, approved_by_user_id, approved_at, approver_comments, created_at, updated_at)
	VALUES (:id, :employee_id, :permission_type_id, :start_date, :end_date, :start_time, :end_time, :is_partial_day, :duration_days, :reason, :document_url, :status, :approved_by_user_id, :approved_at, :approver_comments, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create permission request: %w", err)
	}
	return nil
}

// GetByID fetches one permission request.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*models.PermissionRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_requests WHERE id = $1`, permissionRequestColumns)
	var request models.PermissionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetForUpdateTx fetches one permission request under a row lock.
func (r *PermissionRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.PermissionRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM permission_requests WHERE id = $1 FOR UPDATE`, permissionRequestColumns)
	var request models.PermissionRequest
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateStatusTx records a decision, guarding against lost review races.
func (r *PermissionRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, params ReviewParams) error {
	const query = `UPDATE permission_requests
	SET status = :status, approved_by_user_id = :reviewer_id, approved_at = :reviewed_at, approver_comments = :comments, updated_at = NOW()
	WHERE id = :id AND status IN ('Pendiente', 'EnRevision')`
	result, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"reviewer_id": params.ReviewerID,
		"reviewed_at": params.ReviewedAt,
		"comments":    params.Comments,
	})
	if err != nil {
		return fmt.Errorf("update permission status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check permission status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkInReviewTx flags a pending permission request as being reviewed.
func (r *PermissionRepository) MarkInReviewTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE permission_requests
	SET status = 'EnRevision', updated_at = NOW()
	WHERE id = $1 AND status = 'Pendiente'`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark permission request in review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check permission review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CancelTx marks a permission request cancelled from its checked state.
func (r *PermissionRepository) CancelTx(ctx context.Context, tx *sqlx.Tx, id string, fromStatus models.RequestStatus, comments *string) error {
	const query = `UPDATE permission_requests
	SET status = 'Cancelada', approver_comments = $1, updated_at = NOW()
	WHERE id = $2 AND status = $3`
	result, err := tx.ExecContext(ctx, query, comments, id, fromStatus)
	if err != nil {
		return fmt.Errorf("cancel permission request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check permission cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns permission requests matching the filter, newest first.
func (r *PermissionRepository) List(ctx context.Context, filter models.PermissionRequestFilter) ([]models.PermissionRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM permission_requests`, permissionRequestColumns))

	conditions := make([]string, 0, 5)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.PermissionTypeID != "" {
		args = append(args, filter.PermissionTypeID)
		conditions = append(conditions, fmt.Sprintf("permission_type_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.PermissionRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list permission requests: %w", err)
	}
	return requests, nil
}

// ListPendingForEmployees returns reviewable permission requests of the
// given employees, oldest first.
func (r *PermissionRepository) ListPendingForEmployees(ctx context.Context, employeeIDs []string) ([]models.PermissionRequest, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM permission_requests
	WHERE employee_id IN (?) AND status IN ('Pendiente', 'EnRevision')
	ORDER BY created_at ASC`, permissionRequestColumns), employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}
	query = r.db.Rebind(query)
	var requests []models.PermissionRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list pending permission requests: %w", err)
	}
	return requests, nil
}

// UsageByType aggregates consumed days per type for one employee+year
// counting Pendiente and Aprobada requests.
func (r *PermissionRepository) UsageByType(ctx context.Context, employeeID string, year int) ([]models.PermissionUsage, error) {
	const query = `SELECT pr.permission_type_id, pt.name AS type_name, COALESCE(SUM(pr.duration_days), 0) AS days_used
	FROM permission_requests pr
	JOIN permission_types pt ON pt.id = pr.permission_type_id
	WHERE pr.employee_id = $1 AND EXTRACT(YEAR FROM pr.start_date) = $2
	AND pr.status IN ('Pendiente', 'Aprobada')
	GROUP BY pr.permission_type_id, pt.name
	ORDER BY pt.name`
	var usage []models.PermissionUsage
	if err := r.db.SelectContext(ctx, &usage, query, employeeID, year); err != nil {
		return nil, fmt.Errorf("permission usage by type: %w", err)
	}
	return usage, nil
}
