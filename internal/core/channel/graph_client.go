package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	DefaultAPIVersion   = "v21.0"
)

// GraphClient talks to the Meta Graph API for all three channels.
// Documentation: https://developers.facebook.com/docs/graph-api
type GraphClient struct {
	baseURL    string
	apiVersion string
	client     *http.Client
}

type GraphConfig struct {
	BaseURL    string
	APIVersion string
	// Timeout bounds a single request when the caller's context has no
	// earlier deadline.
	Timeout time.Duration
}

// Credentials identify the business account a call is made for.
type Credentials struct {
	Channel     Type
	ExternalID  string
	AccessToken string
}

// Template is a pre-approved WhatsApp message template.
type Template struct {
	Name     string   `json:"name"`
	Language string   `json:"language"`
	Params   []string `json:"params,omitempty"`
}

type OutboundMessage struct {
	RecipientID string
	Content     Content
	Template    *Template
}

type SendResult struct {
	MessageID   string
	RecipientID string
}

// PlatformProfile is what the profile endpoint returns for a business account.
type PlatformProfile struct {
	ID                 string `json:"id"`
	Name               string `json:"name,omitempty"`
	Username           string `json:"username,omitempty"`
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	VerifiedName       string `json:"verified_name,omitempty"`
	QualityRating      string `json:"quality_rating,omitempty"`
}

// Attributes flattens the non-empty profile fields for credential storage
func (p *PlatformProfile) Attributes() map[string]string {
	out := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("name", p.Name)
	set("username", p.Username)
	set("display_phone_number", p.DisplayPhoneNumber)
	set("verified_name", p.VerifiedName)
	set("quality_rating", p.QualityRating)
	return out
}

// DisplayName picks the best human-readable label
func (p *PlatformProfile) DisplayName() string {
	switch {
	case p.VerifiedName != "":
		return p.VerifiedName
	case p.Name != "":
		return p.Name
	case p.Username != "":
		return p.Username
	}
	return p.DisplayPhoneNumber
}

// NewGraphClient creates a Graph API client
func NewGraphClient(cfg GraphConfig) *GraphClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &GraphClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Send delivers one message and returns the platform message id.
func (c *GraphClient) Send(ctx context.Context, creds Credentials, msg OutboundMessage) (SendResult, error) {
	if msg.RecipientID == "" {
		return SendResult{}, errors.New("recipient id is required")
	}

	switch creds.Channel {
	case Facebook, Instagram:
		return c.sendMessenger(ctx, creds, msg)
	case WhatsApp:
		return c.sendWhatsApp(ctx, creds, msg)
	}
	return SendResult{}, ErrUnknownChannel
}

func (c *GraphClient) sendMessenger(ctx context.Context, creds Credentials, msg OutboundMessage) (SendResult, error) {
	if msg.Template != nil {
		return SendResult{}, fmt.Errorf("%s does not support template messages", creds.Channel)
	}

	message := map[string]interface{}{}
	if msg.Content.Type.IsMedia() && msg.Content.MediaURL != "" {
		message["attachment"] = map[string]interface{}{
			"type": messengerAttachmentType(msg.Content.Type),
			"payload": map[string]interface{}{
				"url":         msg.Content.MediaURL,
				"is_reusable": true,
			},
		}
	} else {
		message["text"] = msg.Content.Text
	}

	payload := map[string]interface{}{
		"recipient":      map[string]string{"id": msg.RecipientID},
		"messaging_type": "RESPONSE",
		"message":        message,
	}

	var resp struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/me/messages", nil, creds.AccessToken, payload, &resp); err != nil {
		return SendResult{}, err
	}
	if resp.MessageID == "" {
		return SendResult{}, &TransportError{Written: true, Err: errors.New("response without message_id")}
	}
	return SendResult{MessageID: resp.MessageID, RecipientID: resp.RecipientID}, nil
}

func messengerAttachmentType(t ContentType) string {
	switch t {
	case ContentImage, ContentSticker:
		return "image"
	case ContentVideo:
		return "video"
	case ContentAudio:
		return "audio"
	}
	return "file"
}

func (c *GraphClient) sendWhatsApp(ctx context.Context, creds Credentials, msg OutboundMessage) (SendResult, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.RecipientID,
	}

	switch {
	case msg.Template != nil:
		tpl := map[string]interface{}{
			"name":     msg.Template.Name,
			"language": map[string]string{"code": msg.Template.Language},
		}
		if len(msg.Template.Params) > 0 {
			params := make([]map[string]string, 0, len(msg.Template.Params))
			for _, p := range msg.Template.Params {
				params = append(params, map[string]string{"type": "text", "text": p})
			}
			tpl["components"] = []map[string]interface{}{
				{"type": "body", "parameters": params},
			}
		}
		payload["type"] = "template"
		payload["template"] = tpl

	case msg.Content.Type.IsMedia():
		mediaType := whatsappMediaType(msg.Content.Type)
		media := map[string]string{}
		if msg.Content.MediaID != "" {
			media["id"] = msg.Content.MediaID
		} else {
			media["link"] = msg.Content.MediaURL
		}
		if msg.Content.Text != "" && mediaType != "audio" && mediaType != "sticker" {
			media["caption"] = msg.Content.Text
		}
		payload["type"] = mediaType
		payload[mediaType] = media

	default:
		payload["type"] = "text"
		payload["text"] = map[string]interface{}{
			"preview_url": false,
			"body":        msg.Content.Text,
		}
	}

	if msg.Content.ReplyTo != "" {
		payload["context"] = map[string]string{"message_id": msg.Content.ReplyTo}
	}

	var resp struct {
		Contacts []struct {
			WaID string `json:"wa_id"`
		} `json:"contacts"`
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+creds.ExternalID+"/messages", nil, creds.AccessToken, payload, &resp); err != nil {
		return SendResult{}, err
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return SendResult{}, &TransportError{Written: true, Err: errors.New("response without messages[].id")}
	}

	result := SendResult{MessageID: resp.Messages[0].ID, RecipientID: msg.RecipientID}
	if len(resp.Contacts) > 0 && resp.Contacts[0].WaID != "" {
		result.RecipientID = resp.Contacts[0].WaID
	}
	return result, nil
}

func whatsappMediaType(t ContentType) string {
	switch t {
	case ContentImage:
		return "image"
	case ContentVideo:
		return "video"
	case ContentAudio:
		return "audio"
	case ContentSticker:
		return "sticker"
	}
	return "document"
}

// Profile fetches the business account behind the credentials. An auth
// error here means the stored token no longer works.
func (c *GraphClient) Profile(ctx context.Context, creds Credentials) (*PlatformProfile, error) {
	var (
		path   string
		fields string
	)
	switch creds.Channel {
	case Facebook:
		path, fields = "/me", "id,name"
	case Instagram:
		path, fields = "/me", "id,name,username"
	case WhatsApp:
		path, fields = "/"+creds.ExternalID, "id,display_phone_number,verified_name,quality_rating"
	default:
		return nil, ErrUnknownChannel
	}

	var profile PlatformProfile
	query := url.Values{"fields": {fields}}
	if err := c.do(ctx, http.MethodGet, path, query, creds.AccessToken, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *GraphClient) do(ctx context.Context, method, path string, query url.Values, token string, payload interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s/%s%s", c.baseURL, c.apiVersion, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	var written atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				written.Store(true)
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Written: written.Load(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Written: true, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{Written: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{StatusCode: status, Message: msg}
	}
	envelope.Error.StatusCode = status
	return envelope.Error
}
