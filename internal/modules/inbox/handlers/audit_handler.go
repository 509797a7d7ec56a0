package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/audit"
)

type AuditHandler struct {
	audit *audit.Service
}

func NewAuditHandler(auditService *audit.Service) *AuditHandler {
	return &AuditHandler{audit: auditService}
}

// List godoc
// @Summary Tenant audit trail
// @Description Platform connections, deactivations and conversation status changes
// @Tags Audit
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param action query string false "Filter by action"
// @Param entity query string false "Filter by entity"
// @Param entity_id query string false "Filter by entity id"
// @Param start_date query string false "RFC3339 lower bound"
// @Param end_date query string false "RFC3339 upper bound"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} audit.AuditLogResponse
// @Failure 400 {object} ErrorResponse
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}

	filter := audit.AuditFilter{
		TenantID: tc.TenantID,
		Action:   c.Query("action"),
		Entity:   c.Query("entity"),
		EntityID: c.Query("entity_id"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}
	for key, dst := range map[string]**time.Time{"start_date": &filter.StartDate, "end_date": &filter.EndDate} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "Invalid "+key)
		}
		*dst = &t
	}

	logs, err := h.audit.GetLogs(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(logs)
}
