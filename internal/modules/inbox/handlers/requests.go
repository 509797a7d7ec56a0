package handlers

import (
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/services"
)

// ConnectPlatformRequest is posted by the dashboard after the OAuth or
// embedded signup flow completes.
type ConnectPlatformRequest struct {
	Type        string     `json:"type" example:"whatsapp"`
	ExternalID  string     `json:"external_id" example:"109876543210"`
	AccessToken string     `json:"access_token"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type TemplateRequest struct {
	Name     string   `json:"name" example:"order_update"`
	Language string   `json:"language" example:"en_US"`
	Params   []string `json:"params,omitempty"`
}

type SendMessageRequest struct {
	Text      string           `json:"text,omitempty"`
	MediaURL  string           `json:"media_url,omitempty"`
	MediaType string           `json:"media_type,omitempty" example:"image"`
	ReplyTo   string           `json:"reply_to,omitempty"`
	Template  *TemplateRequest `json:"template,omitempty"`
}

// SendToCustomerRequest starts or continues a conversation by the
// customer's platform-scoped id.
type SendToCustomerRequest struct {
	ExternalID string `json:"external_id" example:"6281234567890"`
	SendMessageRequest
}

type UpdateStatusRequest struct {
	Status string `json:"status" example:"closed"`
}

// SendResponse is returned for sends that reached a final or unresolved state
type SendResponse struct {
	Message *models.Message `json:"message"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

type SuggestReplyResponse struct {
	Suggestion string `json:"suggestion"`
}

func (r SendMessageRequest) toService() (services.SendRequest, error) {
	req := services.SendRequest{
		Content: channel.Content{
			Type:     channel.ContentText,
			Text:     r.Text,
			MediaURL: r.MediaURL,
			ReplyTo:  r.ReplyTo,
		},
	}

	if r.MediaURL != "" {
		mediaType := channel.ContentType(r.MediaType)
		if r.MediaType == "" {
			mediaType = channel.ContentFile
		}
		if !mediaType.IsMedia() {
			return req, fmt.Errorf("%w: unsupported media_type %q", services.ErrInvalidInput, r.MediaType)
		}
		req.Content.Type = mediaType
	}

	if r.Template != nil {
		req.Template = &channel.Template{
			Name:     r.Template.Name,
			Language: r.Template.Language,
			Params:   r.Template.Params,
		}
	}
	return req, nil
}
