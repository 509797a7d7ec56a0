package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type PlatformHandler struct {
	platforms   repositories.PlatformRepo
	tokens      *services.TokenManager
	diagnostics *services.Diagnostics
	dispatcher  *services.Dispatcher
}

func NewPlatformHandler(
	platforms repositories.PlatformRepo,
	tokens *services.TokenManager,
	diagnostics *services.Diagnostics,
	dispatcher *services.Dispatcher,
) *PlatformHandler {
	return &PlatformHandler{
		platforms:   platforms,
		tokens:      tokens,
		diagnostics: diagnostics,
		dispatcher:  dispatcher,
	}
}

// Connect godoc
// @Summary Connect a platform account
// @Description Stores the access token of a completed OAuth flow after checking it against the platform
// @Tags Platforms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body ConnectPlatformRequest true "Connection result"
// @Success 200 {object} models.Platform
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /platforms/connect [post]
func (h *PlatformHandler) Connect(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}

	var req ConnectPlatformRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	typ, err := channel.ParseType(req.Type)
	if err != nil {
		return badRequest(c, err.Error())
	}

	p, err := h.tokens.Connect(c.UserContext(), services.ConnectRequest{
		TenantID:    tc.TenantID,
		Type:        typ,
		ExternalID:  req.ExternalID,
		AccessToken: req.AccessToken,
		ExpiresAt:   req.ExpiresAt,
		Actor:       tc.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

// List godoc
// @Summary List connected platforms
// @Description Returns the tenant's platform accounts. Access tokens are never included.
// @Tags Platforms
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {array} models.Platform
// @Failure 401 {object} ErrorResponse
// @Router /platforms [get]
func (h *PlatformHandler) List(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}

	platforms, err := h.platforms.ListByTenant(c.UserContext(), tc.TenantID)
	if err != nil {
		return respondError(c, err)
	}
	if platforms == nil {
		platforms = []models.Platform{}
	}
	return c.JSON(platforms)
}

// Diagnostics godoc
// @Summary Check a platform connection
// @Description Verifies the token against the platform and optionally sends a probe message
// @Tags Platforms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Platform ID"
// @Param probe body services.ProbeRequest false "Optional probe send"
// @Success 200 {object} services.DiagnosticReport
// @Failure 404 {object} ErrorResponse
// @Router /platforms/{id}/diagnostics [post]
func (h *PlatformHandler) Diagnostics(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid platform id")
	}

	var probe *services.ProbeRequest
	if len(c.Body()) > 0 {
		probe = &services.ProbeRequest{}
		if err := c.BodyParser(probe); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	report, err := h.diagnostics.Check(c.UserContext(), tc.TenantID, id, probe)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// QRCode godoc
// @Summary Click-to-chat QR code
// @Description PNG QR code of the wa.me, m.me or ig.me link customers scan to open a chat
// @Tags Platforms
// @Produce png
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Platform ID"
// @Param size query int false "Image size in pixels (default 256)"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /platforms/{id}/qr [get]
func (h *PlatformHandler) QRCode(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid platform id")
	}

	p, err := h.platforms.GetForTenant(c.UserContext(), tc.TenantID, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return respondError(c, services.ErrPlatformNotFound)
	}
	if err != nil {
		return respondError(c, err)
	}

	link, err := channel.ChatLink(p.Type, chatHandle(p))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error(), Code: "no_chat_link"})
	}

	size := c.QueryInt("size", defaultQRSize)
	if size <= 0 || size > maxQRSize {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return respondError(c, err)
	}

	c.Set("X-Chat-Link", link)
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// chatHandle picks the public handle of the account for its chat link
func chatHandle(p *models.Platform) string {
	attrs := p.CredentialAttributes()
	switch p.Type {
	case channel.WhatsApp:
		return attrs["display_phone_number"]
	case channel.Instagram:
		return attrs["username"]
	}
	return p.ExternalID
}

// SendToCustomer godoc
// @Summary Send to a customer by platform id
// @Description Agent-initiated send; creates the customer and conversation when needed
// @Tags Platforms
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Platform ID"
// @Param request body SendToCustomerRequest true "Recipient and message"
// @Success 201 {object} SendResponse
// @Success 202 {object} SendResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} SendResponse
// @Router /platforms/{id}/messages [post]
func (h *PlatformHandler) SendToCustomer(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid platform id")
	}

	var body SendToCustomerRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.ExternalID == "" {
		return badRequest(c, "external_id is required")
	}
	req, err := body.SendMessageRequest.toService()
	if err != nil {
		return respondError(c, err)
	}

	msg, err := h.dispatcher.SendToCustomer(c.UserContext(), tc.TenantID, id, body.ExternalID, req)
	return respondSend(c, msg, err)
}

// respondSend reports a send. A message that was stored is always returned
// so the agent sees its final (or unresolved) state.
func respondSend(c *fiber.Ctx, msg *models.Message, err error) error {
	if err == nil {
		return c.Status(fiber.StatusCreated).JSON(SendResponse{Message: msg})
	}
	if msg == nil {
		return respondError(c, err)
	}
	status, code := statusFor(err)
	if status == fiber.StatusInternalServerError {
		return respondError(c, err)
	}
	return c.Status(status).JSON(SendResponse{Message: msg, Error: err.Error(), Code: code})
}
