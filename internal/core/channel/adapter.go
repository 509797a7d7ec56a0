package channel

import (
	"errors"
	"strconv"
	"time"
)

// ErrMalformedPayload is returned when a webhook body cannot be understood.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Adapter verifies and parses webhook deliveries for one channel.
type Adapter interface {
	Type() Type
	Verify(rawBody []byte, signatureHeader, secret string) bool
	Parse(rawBody []byte) ([]RawEvent, error)
}

// AdapterFor returns the adapter of a channel type
func AdapterFor(t Type) (Adapter, error) {
	switch t {
	case Facebook:
		return &messengerAdapter{channel: Facebook, object: "page"}, nil
	case Instagram:
		return &messengerAdapter{channel: Instagram, object: "instagram"}, nil
	case WhatsApp:
		return &whatsappAdapter{}, nil
	}
	return nil, ErrUnknownChannel
}

func fromUnixMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func fromUnixString(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
