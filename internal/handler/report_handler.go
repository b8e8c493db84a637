package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sigep-hr/sigep-api/internal/dto"
	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/internal/service"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
	"github.com/sigep-hr/sigep-api/pkg/response"
)

// ReportHandler exposes CSV and PDF exports of request listings.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// VacationReport godoc
// @Summary Export vacation requests
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param employee_id query string false "Employee ID"
// @Param status query string false "Request status"
// @Param from query string false "Start date lower bound (YYYY-MM-DD)"
// @Param to query string false "Start date upper bound (YYYY-MM-DD)"
// @Param year query int false "Calendar year"
// @Param format query string false "csv or pdf, defaults to csv"
// @Success 200 {file} file
// @Router /reports/vacations [get]
func (h *ReportHandler) VacationReport(c *gin.Context) {
	h.export(c, h.service.VacationReport)
}

// PermissionReport godoc
// @Summary Export permission requests
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param employee_id query string false "Employee ID"
// @Param status query string false "Request status"
// @Param from query string false "Start date lower bound (YYYY-MM-DD)"
// @Param to query string false "Start date upper bound (YYYY-MM-DD)"
// @Param year query int false "Calendar year"
// @Param format query string false "csv or pdf, defaults to csv"
// @Success 200 {file} file
// @Router /reports/permissions [get]
func (h *ReportHandler) PermissionReport(c *gin.Context) {
	h.export(c, h.service.PermissionReport)
}

func (h *ReportHandler) export(c *gin.Context, op func(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) (*service.ReportFile, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report query"))
		return
	}
	file, err := op(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
