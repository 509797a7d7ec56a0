package channel

import (
	"encoding/json"
	"fmt"
	"strings"
)

const whatsappObject = "whatsapp_business_account"

type whatsappAdapter struct{}

type whatsappPayload struct {
	Object string          `json:"object"`
	Entry  []whatsappEntry `json:"entry"`
}

type whatsappEntry struct {
	ID      string           `json:"id"`
	Changes []whatsappChange `json:"changes"`
}

type whatsappChange struct {
	Field string        `json:"field"`
	Value whatsappValue `json:"value"`
}

type whatsappValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []whatsappMessage `json:"messages"`
	Statuses []whatsappStatus  `json:"statuses"`
}

type whatsappMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type whatsappMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *whatsappMedia `json:"image,omitempty"`
	Video    *whatsappMedia `json:"video,omitempty"`
	Audio    *whatsappMedia `json:"audio,omitempty"`
	Document *whatsappMedia `json:"document,omitempty"`
	Sticker  *whatsappMedia `json:"sticker,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
	} `json:"location,omitempty"`
	Reaction *struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	} `json:"reaction,omitempty"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button,omitempty"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Context *struct {
		ID string `json:"id"`
	} `json:"context,omitempty"`
}

type whatsappStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
	Errors      []struct {
		Code    int    `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *whatsappAdapter) Type() Type { return WhatsApp }

func (a *whatsappAdapter) Verify(rawBody []byte, signatureHeader, secret string) bool {
	return VerifySignature(rawBody, signatureHeader, secret)
}

func (a *whatsappAdapter) Parse(rawBody []byte) ([]RawEvent, error) {
	var payload whatsappPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Object != whatsappObject {
		return nil, fmt.Errorf("%w: unexpected object %q for whatsapp", ErrMalformedPayload, payload.Object)
	}

	var events []RawEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			parsed, err := parseWhatsAppValue(entry.ID, change.Value)
			if err != nil {
				return nil, err
			}
			events = append(events, parsed...)
		}
	}
	return events, nil
}

func parseWhatsAppValue(wabaID string, v whatsappValue) ([]RawEvent, error) {
	phoneID := v.Metadata.PhoneNumberID
	if phoneID == "" {
		return nil, fmt.Errorf("%w: change without metadata.phone_number_id", ErrMalformedPayload)
	}

	metadata := map[string]string{"waba_id": wabaID}
	if v.Metadata.DisplayPhoneNumber != "" {
		metadata["display_phone_number"] = v.Metadata.DisplayPhoneNumber
	}

	names := make(map[string]string, len(v.Contacts))
	for _, c := range v.Contacts {
		names[c.WaID] = c.Profile.Name
	}

	var events []RawEvent
	for _, m := range v.Messages {
		if m.ID == "" || m.From == "" {
			return nil, fmt.Errorf("%w: message without id or sender", ErrMalformedPayload)
		}
		ev := RawEvent{
			Kind:        EventMessage,
			Channel:     WhatsApp,
			RecipientID: phoneID,
			SenderID:    m.From,
			MessageID:   m.ID,
			Timestamp:   fromUnixString(m.Timestamp),
			Content:     whatsappContent(m),
			Metadata:    metadata,
		}
		if name := names[m.From]; name != "" {
			ev.Profile = &Profile{Name: name}
		}
		if ev.Content.Type == ContentReaction {
			if ev.Content.Text == "" {
				// emoji removed
				continue
			}
			ev.Kind = EventReaction
		}
		events = append(events, ev)
	}

	for _, s := range v.Statuses {
		status, ok := whatsappStatusMap[s.Status]
		if !ok || s.ID == "" {
			continue
		}
		ev := RawEvent{
			Kind:        EventStatus,
			Channel:     WhatsApp,
			RecipientID: phoneID,
			SenderID:    s.RecipientID,
			MessageID:   s.ID,
			Timestamp:   fromUnixString(s.Timestamp),
			Status:      status,
			Metadata:    metadata,
		}
		if len(s.Errors) > 0 {
			e := s.Errors[0]
			detail := e.Message
			if detail == "" {
				detail = e.Title
			}
			ev.StatusError = fmt.Sprintf("%d: %s", e.Code, detail)
		}
		events = append(events, ev)
	}
	return events, nil
}

var whatsappStatusMap = map[string]DeliveryStatus{
	"sent":      StatusSent,
	"delivered": StatusDelivered,
	"read":      StatusRead,
	"failed":    StatusFailed,
}

func whatsappContent(m whatsappMessage) Content {
	var c Content
	if m.Context != nil {
		c.ReplyTo = m.Context.ID
	}

	media := func(t ContentType, md *whatsappMedia) Content {
		c.Type = t
		if md != nil {
			c.MediaID = md.ID
			c.MimeType = md.MimeType
			c.Text = md.Caption
			if c.Text == "" {
				c.Text = md.Filename
			}
		}
		return c
	}

	switch m.Type {
	case "text":
		c.Type = ContentText
		if m.Text != nil {
			c.Text = m.Text.Body
		}
	case "image":
		return media(ContentImage, m.Image)
	case "video":
		return media(ContentVideo, m.Video)
	case "audio":
		return media(ContentAudio, m.Audio)
	case "document":
		return media(ContentFile, m.Document)
	case "sticker":
		return media(ContentSticker, m.Sticker)
	case "location":
		c.Type = ContentLocation
		if m.Location != nil {
			c.Text = strings.TrimSpace(fmt.Sprintf("%f,%f %s", m.Location.Latitude, m.Location.Longitude, m.Location.Name))
		}
	case "reaction":
		c.Type = ContentReaction
		if m.Reaction != nil {
			c.Text = m.Reaction.Emoji
			c.ReplyTo = m.Reaction.MessageID
		}
	case "button":
		c.Type = ContentText
		if m.Button != nil {
			c.Text = m.Button.Text
		}
	case "interactive":
		c.Type = ContentText
		if in := m.Interactive; in != nil {
			switch {
			case in.ButtonReply != nil:
				c.Text = in.ButtonReply.Title
			case in.ListReply != nil:
				c.Text = in.ListReply.Title
			}
		}
	default:
		c.Type = ContentUnsupported
	}
	return c
}
