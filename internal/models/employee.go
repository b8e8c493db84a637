package models

import "time"

// Employee is the read-side master data record the workflows consume.
// Supervisor is an index-based reference resolved through the repository,
// never an in-memory object graph; self-reference is rejected at write time
// by the owning system.
type Employee struct {
	ID                  string    `db:"id" json:"id"`
	FirstName           string    `db:"first_name" json:"first_name"`
	LastName            string    `db:"last_name" json:"last_name"`
	Email               string    `db:"email" json:"email"`
	VacationDaysPerYear int       `db:"vacation_days_per_year" json:"vacation_days_per_year"`
	SupervisorID        *string   `db:"supervisor_id" json:"supervisor_id,omitempty"`
	UserID              *string   `db:"user_id" json:"user_id,omitempty"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts for display and notifications.
func (e *Employee) FullName() string {
	if e.FirstName == "" {
		return e.LastName
	}
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
