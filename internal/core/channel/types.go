// Package channel holds the Meta channel variants (Facebook Messenger,
// Instagram Direct, WhatsApp Cloud API): webhook verification and parsing,
// plus the Graph API client used for sends and profile lookups.
package channel

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type identifies a channel variant. The set is closed.
type Type string

const (
	Facebook  Type = "facebook"
	Instagram Type = "instagram"
	WhatsApp  Type = "whatsapp"
)

// Types lists every supported channel
var Types = []Type{Facebook, Instagram, WhatsApp}

var ErrUnknownChannel = errors.New("unknown channel type")

// ParseType maps a route or config value onto a channel type
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case Facebook, Instagram, WhatsApp:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// SupportsTemplates reports whether the channel can send pre-approved
// template messages. Only WhatsApp has them.
func (t Type) SupportsTemplates() bool { return t == WhatsApp }

type ContentType string

const (
	ContentText        ContentType = "text"
	ContentImage       ContentType = "image"
	ContentVideo       ContentType = "video"
	ContentAudio       ContentType = "audio"
	ContentFile        ContentType = "file"
	ContentSticker     ContentType = "sticker"
	ContentLocation    ContentType = "location"
	ContentReaction    ContentType = "reaction"
	ContentTemplate    ContentType = "template"
	ContentUnsupported ContentType = "unsupported"
)

// IsMedia reports whether the content carries an attachment
func (c ContentType) IsMedia() bool {
	switch c {
	case ContentImage, ContentVideo, ContentAudio, ContentFile, ContentSticker:
		return true
	}
	return false
}

// DeliveryStatus is the lifecycle of a message as reported by the platform.
type DeliveryStatus string

const (
	StatusQueued    DeliveryStatus = "queued"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return -1
}

// CanAdvance reports whether a receipt moving from s to next is forward
// progress. Receipts never downgrade: a late "sent" after "read" is ignored,
// and failure is only accepted before delivery.
func (s DeliveryStatus) CanAdvance(next DeliveryStatus) bool {
	if next == StatusFailed {
		return s == StatusQueued || s == StatusSent
	}
	if s == StatusFailed {
		return false
	}
	return next.rank() > s.rank()
}

// Predecessors returns the statuses from which next is reachable.
func Predecessors(next DeliveryStatus) []DeliveryStatus {
	var out []DeliveryStatus
	for _, s := range []DeliveryStatus{StatusQueued, StatusSent, StatusDelivered, StatusRead, StatusFailed} {
		if s.CanAdvance(next) {
			out = append(out, s)
		}
	}
	return out
}

// Content is the normalized payload of a message in either direction.
type Content struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	MediaID  string      `json:"media_id,omitempty"`
	MediaURL string      `json:"media_url,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	// ReplyTo is the platform message id this message replies or reacts to
	ReplyTo string `json:"reply_to,omitempty"`
}

// Empty reports whether there is nothing to deliver as a free-form message
func (c Content) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && c.MediaURL == "" && c.MediaID == ""
}

// Profile is customer data carried inside a webhook (WhatsApp contacts[]).
type Profile struct {
	Name string `json:"name,omitempty"`
}

type EventKind string

const (
	EventMessage  EventKind = "message"
	EventReaction EventKind = "reaction"
	EventStatus   EventKind = "status"
	EventRead     EventKind = "read"
	EventEcho     EventKind = "echo"
)

// RawEvent is one item out of a webhook delivery, already mapped onto the
// shared vocabulary but not yet bound to any stored entity.
type RawEvent struct {
	Kind    EventKind
	Channel Type
	// RecipientID is the business side (page id, IG account id, phone
	// number id) and routes the event to a Platform.
	RecipientID string
	// SenderID is the customer's platform-scoped id.
	SenderID  string
	MessageID string
	Timestamp time.Time
	Content   Content
	Profile   *Profile

	// Receipts
	Status      DeliveryStatus
	StatusError string
	Watermark   time.Time

	// Metadata carries business-side profile hints (display number, ...)
	Metadata map[string]string
}
