package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
)

type ConversationHandler struct {
	conversations *services.ConversationService
	dispatcher    *services.Dispatcher
	suggest       *services.SuggestService
}

func NewConversationHandler(conversations *services.ConversationService, dispatcher *services.Dispatcher, suggest *services.SuggestService) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		dispatcher:    dispatcher,
		suggest:       suggest,
	}
}

// List godoc
// @Summary List conversations
// @Description Tenant conversations ordered by last activity, newest first
// @Tags Conversations
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param platform_id query string false "Filter by platform"
// @Param status query string false "open, pending or closed"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Conversation
// @Failure 400 {object} ErrorResponse
// @Router /conversations [get]
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}

	filter := repositories.ConversationFilter{
		TenantID: tc.TenantID,
		Limit:    c.QueryInt("limit", 50),
		Offset:   c.QueryInt("offset", 0),
	}
	if raw := c.Query("platform_id"); raw != "" {
		platformID, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid platform_id")
		}
		filter.PlatformID = &platformID
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseConversationStatus(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		filter.Status = status
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conversations, err := h.conversations.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	return c.JSON(conversations)
}

// Messages godoc
// @Summary Conversation history
// @Description Latest messages of the conversation, oldest first
// @Tags Conversations
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Conversation ID"
// @Param limit query int false "Number of messages (default 100, max 500)"
// @Success 200 {array} models.Message
// @Failure 404 {object} ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	messages, err := h.conversations.History(c.UserContext(), tc.TenantID, id, c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return c.JSON(messages)
}

// Send godoc
// @Summary Reply in a conversation
// @Description Sends text, media or a WhatsApp template. Outside the WhatsApp 24h window only templates are allowed.
// @Tags Conversations
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Conversation ID"
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} SendResponse
// @Success 202 {object} SendResponse "Sent state unknown, reconciliation required"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Reconnect required"
// @Failure 422 {object} SendResponse "Template required or rejected"
// @Failure 429 {object} SendResponse
// @Router /conversations/{id}/messages [post]
func (h *ConversationHandler) Send(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	var body SendMessageRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req, err := body.toService()
	if err != nil {
		return respondError(c, err)
	}

	msg, err := h.dispatcher.SendInConversation(c.UserContext(), tc.TenantID, id, req)
	return respondSend(c, msg, err)
}

// UpdateStatus godoc
// @Summary Change conversation status
// @Tags Conversations
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Conversation ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} models.Conversation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /conversations/{id}/status [patch]
func (h *ConversationHandler) UpdateStatus(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	var body UpdateStatusRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	status, err := models.ParseConversationStatus(body.Status)
	if err != nil {
		return badRequest(c, err.Error())
	}

	conv, err := h.conversations.UpdateStatus(c.UserContext(), tc.TenantID, id, status, tc.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

// SuggestReply godoc
// @Summary Draft a reply with AI
// @Description Returns a suggested reply for the agent to edit. Nothing is sent.
// @Tags Conversations
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path string true "Conversation ID"
// @Success 200 {object} SuggestReplyResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /conversations/{id}/suggest-reply [post]
func (h *ConversationHandler) SuggestReply(c *fiber.Ctx) error {
	tc, ok := tenantOf(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid conversation id")
	}

	suggestion, err := h.suggest.Suggest(c.UserContext(), tc.TenantID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(SuggestReplyResponse{Suggestion: suggestion})
}
