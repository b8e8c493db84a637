package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sigep-hr/sigep-api/internal/models"
)

// CreateVacationRequest is the payload to open a new vacation request.
// Dates use the YYYY-MM-DD wire format.
type CreateVacationRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date" validate:"required"`
	Reason     string `json:"reason"`
}

// UpdateVacationRequest edits the dates/reason of a pending request.
type UpdateVacationRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Reason    string `json:"reason"`
}

// DecisionRequest carries the approver decision payload. Comments are
// optional on approval and mandatory (as reason) on rejection.
type DecisionRequest struct {
	Comments string `json:"comments"`
}

// CancelRequest optionally explains a cancellation.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// VacationRequestQuery mirrors the listing filters.
type VacationRequestQuery struct {
	EmployeeID string
	Status     []models.RequestStatus
	From       *time.Time
	To         *time.Time
	Year       int
	Limit      int
	Offset     int
}

// VacationBalanceView is the denormalized balance returned to callers.
// AvailableDays is derived, never stored.
type VacationBalanceView struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employee_id"`
	Year            int             `json:"year"`
	TotalDays       decimal.Decimal `json:"total_days"`
	UsedDays        decimal.Decimal `json:"used_days"`
	PendingDays     decimal.Decimal `json:"pending_days"`
	AvailableDays   decimal.Decimal `json:"available_days"`
	CarriedOverDays decimal.Decimal `json:"carried_over_days"`
	ExpirationDate  time.Time       `json:"expiration_date"`
}

// VacationRequestView is the fully resolved request returned by every
// workflow operation so callers never need a second read.
type VacationRequestView struct {
	ID                 string               `json:"id"`
	EmployeeID         string               `json:"employee_id"`
	EmployeeName       string               `json:"employee_name"`
	StartDate          time.Time            `json:"start_date"`
	EndDate            time.Time            `json:"end_date"`
	RequestedDays      int                  `json:"requested_days"`
	Reason             *string              `json:"reason,omitempty"`
	Status             models.RequestStatus `json:"status"`
	ApprovedByUserID   *string              `json:"approved_by_user_id,omitempty"`
	ApprovedByUserName *string              `json:"approved_by_user_name,omitempty"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
	ApproverComments   *string              `json:"approver_comments,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// VacationHistoryView is one trail entry with the actor resolved.
type VacationHistoryView struct {
	ID                string               `json:"id"`
	Status            models.RequestStatus `json:"status"`
	Comments          *string              `json:"comments,omitempty"`
	ChangedByUserName string               `json:"changed_by_user_name"`
	CreatedAt         time.Time            `json:"created_at"`
}
