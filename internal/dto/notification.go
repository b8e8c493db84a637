package dto

import "time"

// NotificationView is one in-app notification as returned to the client.
type NotificationView struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Type       string     `json:"type"`
	Module     *string    `json:"module,omitempty"`
	EntityType *string    `json:"entity_type,omitempty"`
	EntityID   *string    `json:"entity_id,omitempty"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// UnreadCountView wraps the unread counter.
type UnreadCountView struct {
	Unread int `json:"unread"`
}
