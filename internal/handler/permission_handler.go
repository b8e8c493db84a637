package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
	"github.com/sigep-hr/sigep-api/pkg/response"
)

type permissionService interface {
	ListTypes(ctx context.Context) ([]models.PermissionType, error)
	Create(ctx context.Context, req dto.CreatePermissionRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error)
	StartReview(ctx context.Context, id string, actor *models.JWTClaims) (*dto.PermissionRequestView, error)
	Approve(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error)
	Reject(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error)
	Cancel(ctx context.Context, id string, req dto.CancelRequest, actor *models.JWTClaims) (*dto.PermissionRequestView, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.PermissionRequestView, error)
	List(ctx context.Context, query dto.PermissionRequestQuery, actor *models.JWTClaims) ([]dto.PermissionRequestView, error)
	PendingForApprover(ctx context.Context, actor *models.JWTClaims) ([]dto.PermissionRequestView, error)
	UsageSummary(ctx context.Context, employeeID string, year int, actor *models.JWTClaims) (*models.PermissionUsageSummary, error)
}

// PermissionHandler exposes REST endpoints for the permission request workflow.
type PermissionHandler struct {
	service permissionService
}

// NewPermissionHandler constructs the handler.
func NewPermissionHandler(service permissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// ListTypes godoc
// @Summary List active permission types
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions/types [get]
func (h *PermissionHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Create godoc
// @Summary Submit a permission request
// @Tags Permissions
// @Accept json
// @Produce json
// @Param payload body dto.CreatePermissionRequest true "Permission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions [post]
func (h *PermissionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid permission payload"))
		return
	}
	view, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, nil)
}

// StartReview godoc
// @Summary Claim a pending permission request for review
// @Tags Permissions
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id}/review [post]
func (h *PermissionHandler) StartReview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.StartReview(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Approve godoc
// @Summary Approve a permission request
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest false "Optional comments"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id}/approve [post]
func (h *PermissionHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a permission request
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id}/reject [post]
func (h *PermissionHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

func (h *PermissionHandler) decide(c *gin.Context, op func(context.Context, string, dto.DecisionRequest, *models.JWTClaims) (*dto.PermissionRequestView, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
			return
		}
	}
	view, err := op(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Cancel godoc
// @Summary Cancel a permission request
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CancelRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id}/cancel [post]
func (h *PermissionHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid cancel payload"))
			return
		}
	}
	view, err := h.service.Cancel(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Get godoc
// @Summary Get permission request detail
// @Tags Permissions
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permissions/{id} [get]
func (h *PermissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List permission requests
// @Tags Permissions
// @Produce json
// @Param employee_id query string false "Employee ID"
// @Param permission_type_id query string false "Permission type ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "Start date lower bound (YYYY-MM-DD)"
// @Param to query string false "Start date upper bound (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.PermissionRequestQuery{
		EmployeeID:       strings.TrimSpace(c.Query("employee_id")),
		PermissionTypeID: strings.TrimSpace(c.Query("permission_type_id")),
		Status:           statusesFromQuery(c.Query("status")),
		From:             dateFromQuery(c, "from"),
		To:               dateFromQuery(c, "to"),
		Limit:            intFromQuery(c, "limit"),
		Offset:           intFromQuery(c, "offset"),
	}
	views, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Pending godoc
// @Summary List permission requests awaiting the caller's decision
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions/pending [get]
func (h *PermissionHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	views, err := h.service.PendingForApprover(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Usage godoc
// @Summary Permission usage totals per type for an employee
// @Tags Permissions
// @Produce json
// @Param id path string true "Employee ID"
// @Param year query int false "Year, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /permissions/usage/{id} [get]
func (h *PermissionHandler) Usage(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year := intFromQuery(c, "year")
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	summary, err := h.service.UsageSummary(c.Request.Context(), c.Param("id"), year, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
