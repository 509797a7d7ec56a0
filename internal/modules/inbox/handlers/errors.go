package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/tenant"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// first match wins
var errorMappings = []errorMapping{
	{services.ErrVerificationFailed, fiber.StatusUnauthorized, "verification_failed"},
	{services.ErrMalformedPayload, fiber.StatusBadRequest, "malformed_payload"},
	{services.ErrInvalidInput, fiber.StatusBadRequest, "invalid_input"},
	{services.ErrEmptyMessage, fiber.StatusBadRequest, "empty_message"},
	{services.ErrTemplateUnsupported, fiber.StatusBadRequest, "template_unsupported"},
	{services.ErrTokenExpired, fiber.StatusConflict, "reconnect_required"},
	{services.ErrTokenRevoked, fiber.StatusConflict, "reconnect_required"},
	{services.ErrOutsideMessagingWindow, fiber.StatusUnprocessableEntity, "template_required"},
	{services.ErrRateLimited, fiber.StatusTooManyRequests, "rate_limited"},
	{services.ErrPermanentReject, fiber.StatusUnprocessableEntity, "rejected"},
	{services.ErrTimeoutUnresolved, fiber.StatusAccepted, "reconciliation_required"},
	{services.ErrPlatformNotFound, fiber.StatusNotFound, "platform_not_found"},
	{services.ErrConversationNotFound, fiber.StatusNotFound, "conversation_not_found"},
	{services.ErrPlatformBound, fiber.StatusConflict, "platform_bound"},
	{services.ErrTenantMismatch, fiber.StatusConflict, "tenant_mismatch"},
	{services.ErrCredentialMismatch, fiber.StatusUnprocessableEntity, "credential_mismatch"},
	{services.ErrTokenRejected, fiber.StatusUnprocessableEntity, "token_rejected"},
	{services.ErrPlatformUnavailable, fiber.StatusBadGateway, "platform_unavailable"},
	{services.ErrSuggestionsDisabled, fiber.StatusServiceUnavailable, "suggestions_disabled"},
}

// statusFor maps a service error onto an HTTP status and error code
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "internal_error"
}

func respondError(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("❌ Request failed")
		return c.Status(status).JSON(ErrorResponse{Error: "internal server error", Code: code})
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg, Code: "invalid_input"})
}

// tenantOf returns the tenant set by the auth middleware
func tenantOf(c *fiber.Ctx) (*tenant.Context, bool) {
	tc, err := tenant.FromFiber(c)
	if err != nil {
		return nil, false
	}
	return tc, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "Unauthorized", Code: "unauthorized"})
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
