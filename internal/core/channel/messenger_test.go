package channel

import (
	"errors"
	"testing"
	"time"
)

func mustAdapter(t *testing.T, typ Type) Adapter {
	t.Helper()
	a, err := AdapterFor(typ)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestMessengerParseTextMessage(t *testing.T) {
	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "PAGE1",
			"time": 1700000000000,
			"messaging": [{
				"sender": {"id": "u123"},
				"recipient": {"id": "PAGE1"},
				"timestamp": 1700000000000,
				"message": {"mid": "m_1", "text": "hello", "unknown_field": true}
			}]
		}]
	}`)

	events, err := mustAdapter(t, Facebook).Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != EventMessage || ev.Channel != Facebook {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.SenderID != "u123" || ev.RecipientID != "PAGE1" || ev.MessageID != "m_1" {
		t.Fatalf("unexpected ids %+v", ev)
	}
	if ev.Content.Type != ContentText || ev.Content.Text != "hello" {
		t.Fatalf("unexpected content %+v", ev.Content)
	}
	if !ev.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
}

func TestMessengerParseReceiptsAndReactions(t *testing.T) {
	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "PAGE1",
			"messaging": [
				{"sender": {"id": "u1"}, "recipient": {"id": "PAGE1"}, "timestamp": 1700000001000,
				 "delivery": {"mids": ["m_a", "m_b"], "watermark": 1700000000500}},
				{"sender": {"id": "u1"}, "recipient": {"id": "PAGE1"}, "timestamp": 1700000002000,
				 "read": {"watermark": 1700000001500}},
				{"sender": {"id": "u1"}, "recipient": {"id": "PAGE1"}, "timestamp": 1700000003000,
				 "reaction": {"mid": "m_a", "action": "react", "reaction": "love", "emoji": "❤"}},
				{"sender": {"id": "u1"}, "recipient": {"id": "PAGE1"}, "timestamp": 1700000004000,
				 "reaction": {"mid": "m_a", "action": "unreact"}},
				{"sender": {"id": "PAGE1"}, "recipient": {"id": "u1"}, "timestamp": 1700000005000,
				 "message": {"mid": "m_echo", "text": "hi", "is_echo": true}},
				{"sender": {"id": "u1"}, "recipient": {"id": "PAGE1"}, "timestamp": 1700000006000,
				 "optin": {"ref": "x"}}
			]
		}]
	}`)

	events, err := mustAdapter(t, Facebook).Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	want := []EventKind{EventStatus, EventStatus, EventRead, EventReaction, EventEcho}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}

	if events[1].MessageID != "m_b" || events[1].Status != StatusDelivered {
		t.Fatalf("unexpected delivery event %+v", events[1])
	}
	if !events[2].Watermark.Equal(time.UnixMilli(1700000001500)) {
		t.Fatalf("watermark = %v", events[2].Watermark)
	}
	if events[3].Content.Text != "❤" || events[3].Content.ReplyTo != "m_a" || events[3].MessageID != "" {
		t.Fatalf("unexpected reaction %+v", events[3])
	}
	if events[4].RecipientID != "PAGE1" || events[4].SenderID != "u1" {
		t.Fatalf("echo should be routed to the page, got %+v", events[4])
	}
}

func TestInstagramParseAttachmentAndReadMid(t *testing.T) {
	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "IG1",
			"messaging": [
				{"sender": {"id": "igsid"}, "recipient": {"id": "IG1"}, "timestamp": 1700000000000,
				 "message": {"mid": "ig_m1", "attachments": [{"type": "image", "payload": {"url": "https://cdn/x.jpg"}}]}},
				{"sender": {"id": "igsid"}, "recipient": {"id": "IG1"}, "timestamp": 1700000001000,
				 "read": {"mid": "ig_out1"}}
			]
		}]
	}`)

	events, err := mustAdapter(t, Instagram).Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Content.Type != ContentImage || events[0].Content.MediaURL != "https://cdn/x.jpg" {
		t.Fatalf("unexpected content %+v", events[0].Content)
	}
	if events[1].Kind != EventStatus || events[1].Status != StatusRead || events[1].MessageID != "ig_out1" {
		t.Fatalf("unexpected read receipt %+v", events[1])
	}
}

func TestMessengerParseFailsClosed(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{"object":`,
		"wrong object":   `{"object":"instagram","entry":[]}`,
		"missing mid":    `{"object":"page","entry":[{"messaging":[{"sender":{"id":"u1"},"recipient":{"id":"P"},"message":{"text":"x"}}]}]}`,
		"missing sender": `{"object":"page","entry":[{"messaging":[{"sender":{},"recipient":{"id":"P"},"message":{"mid":"m","text":"x"}}]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := mustAdapter(t, Facebook).Parse([]byte(body))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("err = %v, want ErrMalformedPayload", err)
			}
		})
	}
}
