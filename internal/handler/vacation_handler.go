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

type vacationService interface {
	Create(ctx context.Context, req dto.CreateVacationRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	Update(ctx context.Context, id string, req dto.UpdateVacationRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	StartReview(ctx context.Context, id string, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	Approve(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	Reject(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	Cancel(ctx context.Context, id string, req dto.CancelRequest, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.VacationRequestView, error)
	List(ctx context.Context, query dto.VacationRequestQuery, actor *models.JWTClaims) ([]dto.VacationRequestView, error)
	PendingForApprover(ctx context.Context, actor *models.JWTClaims) ([]dto.VacationRequestView, error)
	History(ctx context.Context, requestID string, actor *models.JWTClaims) ([]dto.VacationHistoryView, error)
	GetBalance(ctx context.Context, employeeID string, year int, actor *models.JWTClaims) (*dto.VacationBalanceView, error)
	BalanceHistory(ctx context.Context, employeeID string, actor *models.JWTClaims) ([]dto.VacationBalanceView, error)
	InitializeBalance(ctx context.Context, employeeID string, year int, actor *models.JWTClaims) (*dto.VacationBalanceView, error)
}

// VacationHandler exposes REST endpoints for the vacation request workflow.
type VacationHandler struct {
	service vacationService
}

// NewVacationHandler constructs the handler.
func NewVacationHandler(service vacationService) *VacationHandler {
	return &VacationHandler{service: service}
}

// Create godoc
// @Summary Submit a vacation request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param payload body dto.CreateVacationRequest true "Vacation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations [post]
func (h *VacationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateVacationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid vacation payload"))
		return
	}
	view, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, nil)
}

// Update godoc
// @Summary Edit a pending vacation request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UpdateVacationRequest true "Updated dates"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id} [put]
func (h *VacationHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateVacationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid vacation payload"))
		return
	}
	view, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// StartReview godoc
// @Summary Claim a pending vacation request for review
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/review [post]
func (h *VacationHandler) StartReview(c *gin.Context) {
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
// @Summary Approve a vacation request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest false "Optional comments"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/approve [post]
func (h *VacationHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a vacation request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecisionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/reject [post]
func (h *VacationHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject)
}

func (h *VacationHandler) decide(c *gin.Context, op func(context.Context, string, dto.DecisionRequest, *models.JWTClaims) (*dto.VacationRequestView, error)) {
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
// @Summary Cancel a vacation request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.CancelRequest false "Optional reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/{id}/cancel [post]
func (h *VacationHandler) Cancel(c *gin.Context) {
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
// @Summary Get vacation request detail
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vacations/{id} [get]
func (h *VacationHandler) Get(c *gin.Context) {
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
// @Summary List vacation requests
// @Tags Vacations
// @Produce json
// @Param employee_id query string false "Employee ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "Start date lower bound (YYYY-MM-DD)"
// @Param to query string false "Start date upper bound (YYYY-MM-DD)"
// @Param year query int false "Calendar year"
// @Success 200 {object} response.Envelope
// @Router /vacations [get]
func (h *VacationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.VacationRequestQuery{
		EmployeeID: strings.TrimSpace(c.Query("employee_id")),
		Status:     statusesFromQuery(c.Query("status")),
		From:       dateFromQuery(c, "from"),
		To:         dateFromQuery(c, "to"),
		Year:       intFromQuery(c, "year"),
		Limit:      intFromQuery(c, "limit"),
		Offset:     intFromQuery(c, "offset"),
	}
	views, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Pending godoc
// @Summary List vacation requests awaiting the caller's decision
// @Tags Vacations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /vacations/pending [get]
func (h *VacationHandler) Pending(c *gin.Context) {
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

// History godoc
// @Summary Get the status trail of a vacation request
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /vacations/{id}/history [get]
func (h *VacationHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	views, err := h.service.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Balance godoc
// @Summary Get an employee's vacation balance
// @Tags Vacations
// @Produce json
// @Param id path string true "Employee ID"
// @Param year query int false "Year, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /vacations/balance/{id} [get]
func (h *VacationHandler) Balance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year := intFromQuery(c, "year")
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	view, err := h.service.GetBalance(c.Request.Context(), c.Param("id"), year, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// BalanceHistory godoc
// @Summary List an employee's balances across years
// @Tags Vacations
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /vacations/balance/{id}/history [get]
func (h *VacationHandler) BalanceHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	views, err := h.service.BalanceHistory(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// InitializeBalance godoc
// @Summary Initialize an employee's yearly balance with carry-over
// @Tags Vacations
// @Produce json
// @Param id path string true "Employee ID"
// @Param year query int false "Year, defaults to current"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacations/balance/{id}/initialize [post]
func (h *VacationHandler) InitializeBalance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year := intFromQuery(c, "year")
	if year == 0 {
		year = time.Now().UTC().Year()
	}
	view, err := h.service.InitializeBalance(c.Request.Context(), c.Param("id"), year, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, nil)
}
