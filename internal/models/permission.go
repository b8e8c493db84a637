package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PermissionType is catalog seed data describing one short-leave category.
type PermissionType struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Description      *string   `db:"description" json:"description,omitempty"`
	MaxDaysPerYear   *int      `db:"max_days_per_year" json:"max_days_per_year,omitempty"`
	RequiresDocument bool      `db:"requires_document" json:"requires_document"`
	IsPaid           bool      `db:"is_paid" json:"is_paid"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// PermissionRequest is a short-leave request, either whole days or a
// time-of-day slice of a single date. Times use HH:MM wall-clock strings.
type PermissionRequest struct {
	ID               string          `db:"id" json:"id"`
	EmployeeID       string          `db:"employee_id" json:"employee_id"`
	PermissionTypeID string          `db:"permission_type_id" json:"permission_type_id"`
	StartDate        time.Time       `db:"start_date" json:"start_date"`
	EndDate          time.Time       `db:"end_date" json:"end_date"`
	StartTime        *string         `db:"start_time" json:"start_time,omitempty"`
	EndTime          *string         `db:"end_time" json:"end_time,omitempty"`
	IsPartialDay     bool            `db:"is_partial_day" json:"is_partial_day"`
	DurationDays     decimal.Decimal `db:"duration_days" json:"duration_days"`
	Reason           *string         `db:"reason" json:"reason,omitempty"`
	DocumentURL      *string         `db:"document_url" json:"document_url,omitempty"`
	Status           RequestStatus   `db:"status" json:"status"`
	ApprovedByUserID *string         `db:"approved_by_user_id" json:"approved_by_user_id,omitempty"`
	ApprovedAt       *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	ApproverComments *string         `db:"approver_comments" json:"approver_comments,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// PermissionRequestFilter captures listing criteria.
type PermissionRequestFilter struct {
	EmployeeID       string
	PermissionTypeID string
	Status           []RequestStatus
	DateFrom         *time.Time
	DateTo           *time.Time
	Limit            int
	Offset           int
}

// PermissionUsage is the approved/pending consumption of one type in a year.
type PermissionUsage struct {
	PermissionTypeID string          `db:"permission_type_id" json:"permission_type_id"`
	TypeName         string          `db:"type_name" json:"type_name"`
	DaysUsed         decimal.Decimal `db:"days_used" json:"days_used"`
}

// PermissionUsageSummary aggregates usage per type for one employee+year.
type PermissionUsageSummary struct {
	EmployeeID    string            `json:"employee_id"`
	Year          int               `json:"year"`
	UsageByType   []PermissionUsage `json:"usage_by_type"`
	TotalDaysUsed decimal.Decimal   `json:"total_days_used"`
}
