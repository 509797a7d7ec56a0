package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
)

const signatureHeader = "X-Hub-Signature-256"

type WebhookHandler struct {
	ingest *services.IngestService
}

func NewWebhookHandler(ingest *services.IngestService) *WebhookHandler {
	return &WebhookHandler{ingest: ingest}
}

// VerifySubscription godoc
// @Summary Webhook subscription challenge
// @Description Echoes hub.challenge when hub.verify_token matches the configured token
// @Tags Webhook
// @Produce plain
// @Param platform path string true "facebook, instagram or whatsapp"
// @Param hub.mode query string true "subscribe"
// @Param hub.verify_token query string true "Verify token"
// @Param hub.challenge query string true "Challenge to echo"
// @Success 200 {string} string
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /webhooks/{platform} [get]
func (h *WebhookHandler) VerifySubscription(c *fiber.Ctx) error {
	if _, err := channel.ParseType(c.Params("platform")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error(), Code: "unknown_platform"})
	}

	challenge, err := h.ingest.VerifySubscription(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if err != nil {
		log.Warn().Str("platform", c.Params("platform")).Msg("⚠️ Webhook subscription verification failed")
		return respondError(c, err)
	}
	return c.SendString(challenge)
}

// ReceiveWebhook godoc
// @Summary Platform webhook receiver
// @Description Receives signed Messenger, Instagram and WhatsApp Cloud API deliveries. Redelivered events are acknowledged without side effects.
// @Tags Webhook
// @Accept json
// @Produce json
// @Param platform path string true "facebook, instagram or whatsapp"
// @Param X-Hub-Signature-256 header string true "sha256=<hex hmac of the raw body>"
// @Param payload body object true "Webhook payload"
// @Success 200 {object} services.IngestReport
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /webhooks/{platform} [post]
func (h *WebhookHandler) ReceiveWebhook(c *fiber.Ctx) error {
	typ, err := channel.ParseType(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error(), Code: "unknown_platform"})
	}

	// fiber reuses the request buffer once the handler returns
	body := append([]byte(nil), c.Body()...)

	report, err := h.ingest.Handle(c.UserContext(), services.WebhookDelivery{
		Channel:    typ,
		Body:       body,
		Signature:  c.Get(signatureHeader),
		RemoteAddr: c.IP(),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
