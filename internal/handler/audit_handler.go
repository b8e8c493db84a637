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

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary Query the audit trail
// @Tags Audit
// @Produce json
// @Param user_id query string false "Acting user ID"
// @Param module query string false "Module (VACATIONS, PERMISSIONS, AUTH)"
// @Param action query string false "Action (CREATE, APPROVE, REJECT, ...)"
// @Param entity_id query string false "Entity ID"
// @Param from query string false "Lower bound (YYYY-MM-DD)"
// @Param to query string false "Upper bound (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := repository.AuditFilter{
		UserID:   strings.TrimSpace(c.Query("user_id")),
		Module:   strings.TrimSpace(c.Query("module")),
		Action:   strings.TrimSpace(c.Query("action")),
		EntityID: strings.TrimSpace(c.Query("entity_id")),
		From:     dateFromQuery(c, "from"),
		To:       dateFromQuery(c, "to"),
		Limit:    intFromQuery(c, "limit"),
		Offset:   intFromQuery(c, "offset"),
	}
	entries, err := h.service.Query(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
