package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sigep-hr/sigep-api/internal/models"
)

// CreatePermissionRequest is the payload for a new permission request.
// Dates use YYYY-MM-DD; times use HH:MM and are required for partial days.
type CreatePermissionRequest struct {
	EmployeeID       string `json:"employee_id" validate:"required"`
	PermissionTypeID string `json:"permission_type_id" validate:"required"`
	StartDate        string `json:"start_date" validate:"required"`
	EndDate          string `json:"end_date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	IsPartialDay     bool   `json:"is_partial_day"`
	Reason           string `json:"reason"`
	DocumentURL      string `json:"document_url"`
}

// PermissionRequestQuery mirrors the listing filters.
type PermissionRequestQuery struct {
	EmployeeID       string
	PermissionTypeID string
	Status           []models.RequestStatus
	From             *time.Time
	To               *time.Time
	Limit            int
	Offset           int
}

// PermissionRequestView is the denormalized permission request.
type PermissionRequestView struct {
	ID                 string               `json:"id"`
	EmployeeID         string               `json:"employee_id"`
	EmployeeName       string               `json:"employee_name"`
	PermissionTypeID   string               `json:"permission_type_id"`
	PermissionTypeName string               `json:"permission_type_name"`
	StartDate          time.Time            `json:"start_date"`
	EndDate            time.Time            `json:"end_date"`
	StartTime          *string              `json:"start_time,omitempty"`
	EndTime            *string              `json:"end_time,omitempty"`
	IsPartialDay       bool                 `json:"is_partial_day"`
	DurationDays       decimal.Decimal      `json:"duration_days"`
	Reason             *string              `json:"reason,omitempty"`
	DocumentURL        *string              `json:"document_url,omitempty"`
	Status             models.RequestStatus `json:"status"`
	ApprovedByUserID   *string              `json:"approved_by_user_id,omitempty"`
	ApprovedByUserName *string              `json:"approved_by_user_name,omitempty"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
	ApproverComments   *string              `json:"approver_comments,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}
