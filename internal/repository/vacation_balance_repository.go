package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/sigep-hr/sigep-api/internal/models"
)

// VacationBalanceRepository persists the per-employee, per-year day ledger.
// Counter updates always run inside a caller-owned transaction with the
// balance row locked, so concurrent requests cannot overdraw.
type VacationBalanceRepository struct {
	db *sqlx.DB
}

// NewVacationBalanceRepository constructs the repository.
func NewVacationBalanceRepository(db *sqlx.DB) *VacationBalanceRepository {
	return &VacationBalanceRepository{db: db}
}

const balanceColumns = `id, employee_id, year, total_days, used_days, pending_days, carried_over_days, expiration_date, created_at, updated_at`

// Get fetches the balance for one employee and year.
func (r *VacationBalanceRepository) Get(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error) {
	query := fmt.Sprintf(`SELECT %s FROM vacation_balances WHERE employee_id = $1 AND year = $2`, balanceColumns)
	var balance models.VacationBalance
	if err := r.db.GetContext(ctx, &balance, query, employeeID, year); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetForUpdateTx fetches the balance row under a row lock. Every ledger
// mutation in a workflow goes through this read first.
func (r *VacationBalanceRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (*models.VacationBalance, error) {
	query := fmt.Sprintf(`SELECT %s FROM vacation_balances WHERE employee_id = $1 AND year = $2 FOR UPDATE`, balanceColumns)
	var balance models.VacationBalance
	if err := tx.GetContext(ctx, &balance, query, employeeID, year); err != nil {
		return nil, err
	}
	return &balance, nil
}

// CreateTx inserts a new balance row inside the caller's transaction.
func (r *VacationBalanceRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, balance *models.VacationBalance) error {
	if balance.ID == "" {
		balance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if balance.CreatedAt.IsZero() {
		balance.CreatedAt = now
	}
	balance.UpdatedAt = now
	const query = `INSERT INTO vacation_balances
	(id, employee_id, year, total_days, used_days, pending_days, carried_over_days, expiration_date, created_at, updated_at)
	VALUES (:id, :employee_id, :year, :total_days, :used_days, :pending_days, :carried_over_days, :expiration_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, balance); err != nil {
		return fmt.Errorf("create vacation balance: %w", err)
	}
	return nil
}

// UpdateCountersTx writes the used/pending counters of a locked row.
func (r *VacationBalanceRepository) UpdateCountersTx(ctx context.Context, tx *sqlx.Tx, id string, usedDays, pendingDays decimal.Decimal) error {
	const query = `UPDATE vacation_balances SET used_days = $1, pending_days = $2, updated_at = NOW() WHERE id = $3`
	result, err := tx.ExecContext(ctx, query, usedDays, pendingDays, id)
	if err != nil {
		return fmt.Errorf("update balance counters: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check balance update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByEmployee returns every balance year of one employee, newest first.
func (r *VacationBalanceRepository) ListByEmployee(ctx context.Context, employeeID string) ([]models.VacationBalance, error) {
	query := fmt.Sprintf(`SELECT %s FROM vacation_balances WHERE employee_id = $1 ORDER BY year DESC`, balanceColumns)
	var balances []models.VacationBalance
	if err := r.db.SelectContext(ctx, &balances, query, employeeID); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}

// ExistsTx reports whether a balance row already exists for employee+year.
func (r *VacationBalanceRepository) ExistsTx(ctx context.Context, tx *sqlx.Tx, employeeID string, year int) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM vacation_balances WHERE employee_id = $1 AND year = $2)`
	var exists bool
	if err := tx.GetContext(ctx, &exists, query, employeeID, year); err != nil {
		return false, fmt.Errorf("check balance exists: %w", err)
	}
	return exists, nil
}
