package channel

import (
	"errors"
	"testing"
	"time"
)

const whatsappInbound = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "WABA1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "15550001111", "phone_number_id": "PN1"},
				"contacts": [{"profile": {"name": "Dewi"}, "wa_id": "628111"}],
				"messages": [
					{"from": "628111", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "halo"}},
					{"from": "628111", "id": "wamid.2", "timestamp": "1700000001", "type": "image",
					 "image": {"id": "media-9", "mime_type": "image/jpeg", "caption": "receipt"}},
					{"from": "628111", "id": "wamid.3", "timestamp": "1700000002", "type": "reaction",
					 "reaction": {"message_id": "wamid.out", "emoji": "👍"}},
					{"from": "628111", "id": "wamid.4", "timestamp": "1700000003", "type": "interactive",
					 "interactive": {"type": "button_reply", "button_reply": {"id": "b1", "title": "Yes"}}},
					{"from": "628111", "id": "wamid.5", "timestamp": "1700000004", "type": "ephemeral"}
				]
			}
		}, {
			"field": "account_update",
			"value": {}
		}]
	}]
}`

func TestWhatsAppParseMessages(t *testing.T) {
	events, err := mustAdapter(t, WhatsApp).Parse([]byte(whatsappInbound))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	text := events[0]
	if text.Kind != EventMessage || text.RecipientID != "PN1" || text.SenderID != "628111" || text.MessageID != "wamid.1" {
		t.Fatalf("unexpected text event %+v", text)
	}
	if text.Profile == nil || text.Profile.Name != "Dewi" {
		t.Fatalf("profile not attached: %+v", text.Profile)
	}
	if !text.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("timestamp = %v", text.Timestamp)
	}
	if text.Metadata["display_phone_number"] != "15550001111" || text.Metadata["waba_id"] != "WABA1" {
		t.Fatalf("metadata = %v", text.Metadata)
	}

	if img := events[1].Content; img.Type != ContentImage || img.MediaID != "media-9" || img.Text != "receipt" {
		t.Fatalf("unexpected image content %+v", img)
	}
	if r := events[2]; r.Kind != EventReaction || r.Content.ReplyTo != "wamid.out" || r.MessageID != "wamid.3" {
		t.Fatalf("unexpected reaction %+v", r)
	}
	if events[3].Content.Text != "Yes" {
		t.Fatalf("interactive title = %q", events[3].Content.Text)
	}
	if events[4].Content.Type != ContentUnsupported {
		t.Fatalf("unknown type should map to unsupported, got %s", events[4].Content.Type)
	}
}

func TestWhatsAppParseStatuses(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "WABA1", "changes": [{"field": "messages", "value": {
			"metadata": {"phone_number_id": "PN1"},
			"statuses": [
				{"id": "wamid.out1", "status": "delivered", "timestamp": "1700000100", "recipient_id": "628111"},
				{"id": "wamid.out2", "status": "failed", "timestamp": "1700000101", "recipient_id": "628111",
				 "errors": [{"code": 131047, "title": "Re-engagement message"}]},
				{"id": "wamid.out3", "status": "deleted", "timestamp": "1700000102", "recipient_id": "628111"}
			]
		}}]}]
	}`)

	events, err := mustAdapter(t, WhatsApp).Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != EventStatus || events[0].Status != StatusDelivered {
		t.Fatalf("unexpected status %+v", events[0])
	}
	if events[1].Status != StatusFailed || events[1].StatusError != "131047: Re-engagement message" {
		t.Fatalf("unexpected failure %+v", events[1])
	}
}

func TestWhatsAppParseFailsClosed(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `[`,
		"wrong object":   `{"object":"page"}`,
		"missing id":     `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"metadata":{"phone_number_id":"PN1"},"messages":[{"from":"1","type":"text"}]}}]}]}`,
		"missing number": `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"1","id":"w","type":"text"}]}}]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := mustAdapter(t, WhatsApp).Parse([]byte(body))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("err = %v, want ErrMalformedPayload", err)
			}
		})
	}
}
