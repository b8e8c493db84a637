package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionApprove        = "APPROVE"
	AuditActionReject         = "REJECT"
	AuditActionCancel         = "CANCEL"
	AuditActionInitialize     = "INITIALIZE"
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
)

// Audit module names group entries per functional area.
const (
	AuditModuleVacations   = "VACACIONES"
	AuditModulePermissions = "PERMISOS"
	AuditModuleAuth        = "AUTH"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	Module      string    `db:"module" json:"module"`
	EntityType  *string   `db:"entity_type" json:"entity_type,omitempty"`
	EntityID    *string   `db:"entity_id" json:"entity_id,omitempty"`
	OldValues   []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues   []byte    `db:"new_values" json:"new_values,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
