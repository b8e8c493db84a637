package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VacationBalance is the per-employee, per-year ledger row. AvailableDays
// is never persisted; it is always derived from the other three counters.
type VacationBalance struct {
	ID              string          `db:"id" json:"id"`
	EmployeeID      string          `db:"employee_id" json:"employee_id"`
	Year            int             `db:"year" json:"year"`
	TotalDays       decimal.Decimal `db:"total_days" json:"total_days"`
	UsedDays        decimal.Decimal `db:"used_days" json:"used_days"`
	PendingDays     decimal.Decimal `db:"pending_days" json:"pending_days"`
	CarriedOverDays decimal.Decimal `db:"carried_over_days" json:"carried_over_days"`
	ExpirationDate  time.Time       `db:"expiration_date" json:"expiration_date"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AvailableDays derives the spendable remainder: total - used - pending.
func (b *VacationBalance) AvailableDays() decimal.Decimal {
	return b.TotalDays.Sub(b.UsedDays).Sub(b.PendingDays)
}

// VacationRequest is a paid-leave request over an inclusive date range.
type VacationRequest struct {
	ID               string        `db:"id" json:"id"`
	EmployeeID       string        `db:"employee_id" json:"employee_id"`
	StartDate        time.Time     `db:"start_date" json:"start_date"`
	EndDate          time.Time     `db:"end_date" json:"end_date"`
	RequestedDays    int           `db:"requested_days" json:"requested_days"`
	Reason           *string       `db:"reason" json:"reason,omitempty"`
	Status           RequestStatus `db:"status" json:"status"`
	ApprovedByUserID *string       `db:"approved_by_user_id" json:"approved_by_user_id,omitempty"`
	ApprovedAt       *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	ApproverComments *string       `db:"approver_comments" json:"approver_comments,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// VacationRequestHistory is one append-only trail entry per transition,
// including creation.
type VacationRequestHistory struct {
	ID                string        `db:"id" json:"id"`
	VacationRequestID string        `db:"vacation_request_id" json:"vacation_request_id"`
	Status            RequestStatus `db:"status" json:"status"`
	Comments          *string       `db:"comments" json:"comments,omitempty"`
	ChangedByUserID   string        `db:"changed_by_user_id" json:"changed_by_user_id"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// VacationRequestFilter captures listing criteria.
type VacationRequestFilter struct {
	EmployeeID    string
	Status        []RequestStatus
	StartDateFrom *time.Time
	StartDateTo   *time.Time
	Year          int
	Limit         int
	Offset        int
}
