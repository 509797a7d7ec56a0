package channel

import (
	"encoding/json"
	"fmt"
)

// Messenger and Instagram share the Messenger Platform webhook shape; only
// the "object" discriminator differs.
type messengerAdapter struct {
	channel Type
	object  string
}

type messengerPayload struct {
	Object string           `json:"object"`
	Entry  []messengerEntry `json:"entry"`
}

type messengerEntry struct {
	ID        string               `json:"id"`
	Time      int64                `json:"time"`
	Messaging []messengerMessaging `json:"messaging"`
}

type messengerParty struct {
	ID string `json:"id"`
}

type messengerMessaging struct {
	Sender    messengerParty     `json:"sender"`
	Recipient messengerParty     `json:"recipient"`
	Timestamp int64              `json:"timestamp"`
	Message   *messengerMessage  `json:"message,omitempty"`
	Delivery  *messengerDelivery `json:"delivery,omitempty"`
	Read      *messengerRead     `json:"read,omitempty"`
	Reaction  *messengerReaction `json:"reaction,omitempty"`
	Postback  *messengerPostback `json:"postback,omitempty"`
}

type messengerMessage struct {
	Mid         string                `json:"mid"`
	Text        string                `json:"text"`
	IsEcho      bool                  `json:"is_echo"`
	IsDeleted   bool                  `json:"is_deleted"`
	Attachments []messengerAttachment `json:"attachments"`
	ReplyTo     *struct {
		Mid string `json:"mid"`
	} `json:"reply_to,omitempty"`
}

type messengerAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL         string `json:"url"`
		StickerID   int64  `json:"sticker_id"`
		Title       string `json:"title"`
		Coordinates *struct {
			Lat  float64 `json:"lat"`
			Long float64 `json:"long"`
		} `json:"coordinates,omitempty"`
	} `json:"payload"`
}

type messengerDelivery struct {
	Mids      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

type messengerRead struct {
	Watermark int64  `json:"watermark"`
	Mid       string `json:"mid"`
}

type messengerReaction struct {
	Mid      string `json:"mid"`
	Action   string `json:"action"`
	Reaction string `json:"reaction"`
	Emoji    string `json:"emoji"`
}

type messengerPostback struct {
	Mid     string `json:"mid"`
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

func (a *messengerAdapter) Type() Type { return a.channel }

func (a *messengerAdapter) Verify(rawBody []byte, signatureHeader, secret string) bool {
	return VerifySignature(rawBody, signatureHeader, secret)
}

func (a *messengerAdapter) Parse(rawBody []byte) ([]RawEvent, error) {
	var payload messengerPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Object != a.object {
		return nil, fmt.Errorf("%w: unexpected object %q for %s", ErrMalformedPayload, payload.Object, a.channel)
	}

	var events []RawEvent
	for _, entry := range payload.Entry {
		for _, item := range entry.Messaging {
			ev, ok, err := a.parseMessaging(entry, item)
			if err != nil {
				return nil, err
			}
			if ok {
				events = append(events, ev...)
			}
		}
	}
	return events, nil
}

func (a *messengerAdapter) parseMessaging(entry messengerEntry, item messengerMessaging) ([]RawEvent, bool, error) {
	base := RawEvent{
		Channel:     a.channel,
		RecipientID: item.Recipient.ID,
		SenderID:    item.Sender.ID,
		Timestamp:   fromUnixMillis(item.Timestamp),
	}
	if base.RecipientID == "" {
		base.RecipientID = entry.ID
	}

	switch {
	case item.Message != nil:
		msg := item.Message
		if msg.IsEcho {
			// Echoes come from the page itself; the business side is the sender.
			base.Kind = EventEcho
			base.RecipientID, base.SenderID = item.Sender.ID, item.Recipient.ID
			base.MessageID = msg.Mid
			return []RawEvent{base}, true, nil
		}
		if msg.IsDeleted {
			return nil, false, nil
		}
		if msg.Mid == "" || base.SenderID == "" {
			return nil, false, fmt.Errorf("%w: message without mid or sender id", ErrMalformedPayload)
		}
		base.Kind = EventMessage
		base.MessageID = msg.Mid
		base.Content = messengerContent(msg)
		return []RawEvent{base}, true, nil

	case item.Postback != nil:
		if item.Postback.Mid == "" {
			return nil, false, nil
		}
		if base.SenderID == "" {
			return nil, false, fmt.Errorf("%w: postback without sender id", ErrMalformedPayload)
		}
		base.Kind = EventMessage
		base.MessageID = item.Postback.Mid
		base.Content = Content{Type: ContentText, Text: item.Postback.Title}
		return []RawEvent{base}, true, nil

	case item.Reaction != nil:
		if item.Reaction.Action == "unreact" {
			return nil, false, nil
		}
		if base.SenderID == "" || item.Reaction.Mid == "" {
			return nil, false, fmt.Errorf("%w: reaction without target or sender", ErrMalformedPayload)
		}
		emoji := item.Reaction.Emoji
		if emoji == "" {
			emoji = item.Reaction.Reaction
		}
		base.Kind = EventReaction
		base.Content = Content{Type: ContentReaction, Text: emoji, ReplyTo: item.Reaction.Mid}
		return []RawEvent{base}, true, nil

	case item.Delivery != nil:
		var out []RawEvent
		for _, mid := range item.Delivery.Mids {
			ev := base
			ev.Kind = EventStatus
			ev.MessageID = mid
			ev.Status = StatusDelivered
			out = append(out, ev)
		}
		return out, len(out) > 0, nil

	case item.Read != nil:
		if item.Read.Mid != "" {
			base.Kind = EventStatus
			base.MessageID = item.Read.Mid
			base.Status = StatusRead
			return []RawEvent{base}, true, nil
		}
		base.Kind = EventRead
		base.Watermark = fromUnixMillis(item.Read.Watermark)
		if base.Watermark.IsZero() {
			base.Watermark = base.Timestamp
		}
		return []RawEvent{base}, true, nil
	}

	// optins, referrals, handovers: not part of the inbox
	return nil, false, nil
}

func messengerContent(msg *messengerMessage) Content {
	c := Content{Type: ContentText, Text: msg.Text}
	if msg.ReplyTo != nil {
		c.ReplyTo = msg.ReplyTo.Mid
	}
	if len(msg.Attachments) == 0 {
		return c
	}

	att := msg.Attachments[0]
	c.MediaURL = att.Payload.URL
	switch att.Type {
	case "image":
		c.Type = ContentImage
		if att.Payload.StickerID != 0 {
			c.Type = ContentSticker
		}
	case "video", "ig_reel", "reel":
		c.Type = ContentVideo
	case "audio":
		c.Type = ContentAudio
	case "file":
		c.Type = ContentFile
	case "location":
		c.Type = ContentLocation
		if coords := att.Payload.Coordinates; coords != nil {
			c.Text = fmt.Sprintf("%f,%f", coords.Lat, coords.Long)
		}
	default:
		c.Type = ContentUnsupported
	}
	return c
}
