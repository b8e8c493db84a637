package models

// RequestStatus is the shared lifecycle state for vacation and permission
// requests. Statuses keep their Spanish names from the HR domain.
type RequestStatus string

const (
	StatusPendiente  RequestStatus = "Pendiente"
	StatusEnRevision RequestStatus = "EnRevision"
	StatusAprobada   RequestStatus = "Aprobada"
	StatusRechazada  RequestStatus = "Rechazada"
	StatusCancelada  RequestStatus = "Cancelada"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPendiente, StatusEnRevision, StatusAprobada, StatusRechazada, StatusCancelada:
		return true
	}
	return false
}

// Reviewable reports whether a request in this status can still be
// approved or rejected.
func (s RequestStatus) Reviewable() bool {
	return s == StatusPendiente || s == StatusEnRevision
}

// Terminal reports whether the status is final. Aprobada is terminal for
// review purposes; the cancel-while-future exception is handled by the
// workflows because it depends on the request's start date.
func (s RequestStatus) Terminal() bool {
	return s == StatusAprobada || s == StatusRechazada || s == StatusCancelada
}
