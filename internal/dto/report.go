package dto

// ReportQuery selects the slice of requests included in an export.
// Dates use the YYYY-MM-DD wire format.
type ReportQuery struct {
	EmployeeID string `form:"employee_id"`
	Status     string `form:"status"`
	From       string `form:"from"`
	To         string `form:"to"`
	Year       int    `form:"year"`
	Format     string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
