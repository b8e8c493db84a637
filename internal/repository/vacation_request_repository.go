package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sigep-hr/sigep-api/internal/models"
)

// VacationRequestRepository persists vacation requests and their
// append-only status trail.
type VacationRequestRepository struct {
	db *sqlx.DB
}

// NewVacationRequestRepository constructs the repository.
func NewVacationRequestRepository(db *sqlx.DB) *VacationRequestRepository {
	return &VacationRequestRepository{db: db}
}

const vacationRequestColumns = `id, employee_id, start_date, end_date, requested_days, reason, status,
       approved_by_user_id, approved_at, approver_comments, created_at, updated_at`

// CreateTx inserts a new request inside the caller's transaction.
func (r *VacationRequestRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.VacationRequest) error {
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
	const query = `INSERT INTO vacation_requests
	(id, employee_id, start_date, end_date, requested_days, reason, status, approved_by_user_id, approved_at, approver_comments, created_at, updated_at)
	VALUES (:id, :employee_id, :start_date, :end_date, :requested_days, :reason, :status, :approved_by_user_id, :approved_at, :approver_comments, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create vacation request: %w", err)
	}
	return nil
}

// GetByID fetches one request.
func (r *VacationRequestRepository) GetByID(ctx context.Context, id string) (*models.VacationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM vacation_requests WHERE id = $1`, vacationRequestColumns)
	var request models.VacationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetForUpdateTx fetches one request under a row lock so the workflow can
// check and change its status without racing a concurrent reviewer.
func (r *VacationRequestRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.VacationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM vacation_requests WHERE id = $1 FOR UPDATE`, vacationRequestColumns)
	var request models.VacationRequest
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasOverlapTx reports whether the employee already has a Pendiente,
// EnRevision or Aprobada request intersecting the inclusive range.
// excludeID skips the request being edited.
func (r *VacationRequestRepository) HasOverlapTx(ctx context.Context, tx *sqlx.Tx, employeeID string, start, end time.Time, excludeID string) (bool, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT EXISTS(SELECT 1 FROM vacation_requests
	WHERE employee_id = $1 AND status IN ('Pendiente', 'EnRevision', 'Aprobada')
	AND start_date <= $2 AND end_date >= $3`)
	args := []interface{}{employeeID, end, start}
	if excludeID != "" {
		args = append(args, excludeID)
		builder.WriteString(fmt.Sprintf(" AND id <> $%d", len(args)))
	}
	builder.WriteString(")")
	var exists bool
	if err := tx.GetContext(ctx, &exists, builder.String(), args...); err != nil {
		return false, fmt.Errorf("check vacation overlap: %w", err)
	}
	return exists, nil
}

// UpdateDatesTx rewrites the range of a still-pending request.
func (r *VacationRequestRepository) UpdateDatesTx(ctx context.Context, tx *sqlx.Tx, id string, start, end time.Time, requestedDays int, reason *string) error {
	const query = `UPDATE vacation_requests
	SET start_date = $1, end_date = $2, requested_days = $3, reason = $4, updated_at = NOW()
	WHERE id = $5 AND status = 'Pendiente'`
	result, err := tx.ExecContext(ctx, query, start, end, requestedDays, reason, id)
	if err != nil {
		return fmt.Errorf("update vacation request dates: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReviewParams groups the columns a decision writes.
type ReviewParams struct {
	ID         string
	Status     models.RequestStatus
	ReviewerID string
	ReviewedAt time.Time
	Comments   *string
}

// UpdateStatusTx records a decision. The WHERE clause re-checks that the
// row is still reviewable, turning lost races into sql.ErrNoRows.
func (r *VacationRequestRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, params ReviewParams) error {
	const query = `UPDATE vacation_requests
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
		return fmt.Errorf("update vacation request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkInReviewTx flags a pending request as being reviewed. A row already
// claimed or decided yields sql.ErrNoRows.
func (r *VacationRequestRepository) MarkInReviewTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `UPDATE vacation_requests
	SET status = 'EnRevision', updated_at = NOW()
	WHERE id = $1 AND status = 'Pendiente'`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark vacation request in review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CancelTx marks a request cancelled regardless of its prior reviewable or
// approved state; the workflow validates the transition before calling.
func (r *VacationRequestRepository) CancelTx(ctx context.Context, tx *sqlx.Tx, id string, fromStatus models.RequestStatus, comments *string) error {
	const query = `UPDATE vacation_requests
	SET status = 'Cancelada', approver_comments = $1, updated_at = NOW()
	WHERE id = $2 AND status = $3`
	result, err := tx.ExecContext(ctx, query, comments, id, fromStatus)
	if err != nil {
		return fmt.Errorf("cancel vacation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns requests matching the filter, newest first.
func (r *VacationRequestRepository) List(ctx context.Context, filter models.VacationRequestFilter) ([]models.VacationRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM vacation_requests`, vacationRequestColumns))

	conditions := make([]string, 0, 5)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StartDateFrom != nil {
		args = append(args, *filter.StartDateFrom)
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if filter.StartDateTo != nil {
		args = append(args, *filter.StartDateTo)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("EXTRACT(YEAR FROM start_date) = $%d", len(args)))
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

	var requests []models.VacationRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list vacation requests: %w", err)
	}
	return requests, nil
}

// ListPendingForEmployees returns reviewable requests of the given
// employees, oldest first so approvers work the backlog in order.
func (r *VacationRequestRepository) ListPendingForEmployees(ctx context.Context, employeeIDs []string) ([]models.VacationRequest, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM vacation_requests
	WHERE employee_id IN (?) AND status IN ('Pendiente', 'EnRevision')
	ORDER BY created_at ASC`, vacationRequestColumns), employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}
	query = r.db.Rebind(query)
	var requests []models.VacationRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list pending vacation requests: %w", err)
	}
	return requests, nil
}

// AddHistoryTx appends one trail entry inside the caller's transaction.
func (r *VacationRequestRepository) AddHistoryTx(ctx context.Context, tx *sqlx.Tx, entry *models.VacationRequestHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO vacation_request_history
	(id, vacation_request_id, status, comments, changed_by_user_id, created_at)
	VALUES (:id, :vacation_request_id, :status, :comments, :changed_by_user_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("add vacation request history: %w", err)
	}
	return nil
}

// History returns the trail of one request, oldest first.
func (r *VacationRequestRepository) History(ctx context.Context, requestID string) ([]models.VacationRequestHistory, error) {
	const query = `SELECT id, vacation_request_id, status, comments, changed_by_user_id, created_at
	FROM vacation_request_history WHERE vacation_request_id = $1 ORDER BY created_at ASC`
	var entries []models.VacationRequestHistory
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list vacation request history: %w", err)
	}
	return entries, nil
}
