package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sigep-hr/sigep-api/internal/repository"
	"github.com/sigep-hr/sigep-api/internal/service"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
	"github.com/sigep-hr/sigep-api/pkg/response"
)

// EmployeeHandler exposes employee directory reads.
type EmployeeHandler struct {
	service *service.EmployeeService
}

// NewEmployeeHandler constructs the handler.
func NewEmployeeHandler(svc *service.EmployeeService) *EmployeeHandler {
	return &EmployeeHandler{service: svc}
}

// Me godoc
// @Summary Get the caller's employee record
// @Tags Employees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /employees/me [get]
func (h *EmployeeHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	employee, err := h.service.Me(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// Get godoc
// @Summary Get an employee by ID
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	employee, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// List godoc
// @Summary List employees
// @Tags Employees
// @Produce json
// @Param supervisor_id query string false "Supervisor ID"
// @Param search query string false "Name or email fragment"
// @Param active query bool false "Active flag"
// @Success 200 {object} response.Envelope
// @Router /employees [get]
func (h *EmployeeHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := repository.EmployeeFilter{
		SupervisorID: strings.TrimSpace(c.Query("supervisor_id")),
		Search:       strings.TrimSpace(c.Query("search")),
		Limit:        intFromQuery(c, "limit"),
		Offset:       intFromQuery(c, "offset"),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	employees, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employees, nil)
}
