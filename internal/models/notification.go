package models

import "time"

// Notification severities derived from the workflow outcome.
const (
	NotificationSuccess = "SUCCESS"
	NotificationWarning = "WARNING"
	NotificationInfo    = "INFO"
)

// Notification is an in-app message addressed to one user account.
type Notification struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Title      string     `db:"title" json:"title"`
	Message    string     `db:"message" json:"message"`
	Type       string     `db:"type" json:"type"`
	Module     *string    `db:"module" json:"module,omitempty"`
	EntityType *string    `db:"entity_type" json:"entity_type,omitempty"`
	EntityID   *string    `db:"entity_id" json:"entity_id,omitempty"`
	IsRead     bool       `db:"is_read" json:"is_read"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
