package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/analytics"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/export"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
)

const maxReportDays = 92

type ReportHandler struct {
	stats       *services.StatsService
	transcripts *services.TranscriptService
	now         func() time.Time
}

func NewReportHandler(stats *services.StatsService, transcripts *services.TranscriptService) *ReportHandler {
	return &ReportHandler{stats: stats, transcripts: transcripts, now: time.Now}
}

// MessageVolume godoc
// @Summary Message volume
// @Description Inbound and outbound counts per channel with a daily series. Use period or start_date/end_date (RFC3339, end exclusive).
// @Tags Analytics
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param period query string false "today, yesterday, last_7_days, last_30_days, this_month, last_month"
// @Param start_date query string false "RFC3339 start"
// @Param end_date query string false "RFC3339 end"
// @Success 200 {object} services.VolumeReport
// @Failure 400 {object} ErrorResponse
// @Router /analytics/messages [get]
func (h *ReportHandler) MessageVolume(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}

	var (
		r   *analytics.DateRange
		err error
	)
	start, end := c.Query("start_date"), c.Query("end_date")
	if start != "" || end != "" {
		s, errS := time.Parse(time.RFC3339, start)
		e, errE := time.Parse(time.RFC3339, end)
		if errS != nil || errE != nil {
			return badRequest(c, "start_date and end_date must both be RFC3339")
		}
		r, err = analytics.CustomRange(s.UTC(), e.UTC(), maxReportDays)
	} else {
		r, err = analytics.PeriodRange(c.Query("period", "last_7_days"), h.now().UTC())
	}
	if err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.stats.MessageVolume(c.UserContext(), tc.TenantID, *r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// ExportConversation godoc
// @Summary Export a conversation transcript
// @Tags Conversations
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Conversation ID"
// @Param format query string false "xlsx (default) or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /conversations/{id}/export [get]
func (h *ReportHandler) ExportConversation(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation ID")
	}
	format, ok := export.ParseFormat(c.Query("format"))
	if !ok {
		return badRequest(c, "format must be xlsx or pdf")
	}

	file, err := h.transcripts.Export(c.UserContext(), tc.TenantID, id, format)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	return c.Send(file.Data)
}
