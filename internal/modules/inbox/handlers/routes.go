package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Handlers groups every HTTP handler of the inbox module
type Handlers struct {
	Health       *HealthHandler
	Webhook      *WebhookHandler
	Platform     *PlatformHandler
	Conversation *ConversationHandler
	Audit        *AuditHandler
	Report       *ReportHandler
}

// RegisterRoutes mounts the inbox API. Webhooks are authenticated by
// signature; everything else goes through requireAuth.
func RegisterRoutes(app *fiber.App, h Handlers, requireAuth fiber.Handler) {
	app.Get("/health", h.Health.GetHealth)

	// Webhook routes
	app.Get("/webhooks/:platform", h.Webhook.VerifySubscription)
	app.Post("/webhooks/:platform", h.Webhook.ReceiveWebhook)

	// Platform routes
	platforms := app.Group("/platforms", requireAuth)
	platforms.Post("/connect", h.Platform.Connect)
	platforms.Get("/", h.Platform.List)
	platforms.Post("/:id/diagnostics", h.Platform.Diagnostics)
	platforms.Get("/:id/qr", h.Platform.QRCode)
	platforms.Post("/:id/messages", h.Platform.SendToCustomer)

	// Conversation routes
	conversations := app.Group("/conversations", requireAuth)
	conversations.Get("/", h.Conversation.List)
	conversations.Get("/:id/messages", h.Conversation.Messages)
	conversations.Post("/:id/messages", h.Conversation.Send)
	conversations.Patch("/:id/status", h.Conversation.UpdateStatus)
	conversations.Post("/:id/suggest-reply", h.Conversation.SuggestReply)
	conversations.Get("/:id/export", h.Report.ExportConversation)

	app.Get("/analytics/messages", requireAuth, h.Report.MessageVolume)

	app.Get("/audit-logs", requireAuth, h.Audit.List)
}
