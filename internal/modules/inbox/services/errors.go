package services

import (
	"errors"
	"fmt"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
)

var (
	ErrVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedPayload   = channel.ErrMalformedPayload
	ErrDuplicateEvent     = errors.New("duplicate event")

	ErrTokenExpired         = errors.New("platform token expired, reconnect required")
	ErrTokenRevoked         = errors.New("platform token revoked, reconnect required")
	ErrPlatformNotFound     = errors.New("platform not found")
	ErrPlatformBound        = errors.New("platform account is connected to another tenant")
	ErrCredentialMismatch   = errors.New("token does not belong to the requested account")
	ErrTokenRejected        = errors.New("platform rejected the access token")
	ErrInvalidInput         = errors.New("invalid input")
	ErrTenantMismatch       = errors.New("tenant mismatch")
	ErrConversationNotFound = errors.New("conversation not found")

	ErrOutsideMessagingWindow = errors.New("outside messaging window, template required")
	ErrTemplateUnsupported    = errors.New("channel does not support template messages")
	ErrEmptyMessage           = errors.New("message has no content and no template")
	ErrRateLimited            = errors.New("platform rate limit reached")
	ErrPermanentReject        = errors.New("platform rejected the message")
	ErrPlatformUnavailable    = errors.New("platform unavailable")
	ErrTimeoutUnresolved      = errors.New("send outcome unknown, reconciliation required")
)

// SendError carries the classification of a failed outbound send.
// errors.Is matches the wrapped sentinel.
type SendError struct {
	Outcome channel.Outcome
	Reason  string
	Err     error
}

func (e *SendError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *SendError) Unwrap() error { return e.Err }
