package channel

import (
	"errors"
	"strings"
	"unicode"
)

// ChatLink builds the click-to-chat URL customers open to start a
// conversation: wa.me for WhatsApp (display number), m.me for pages and
// ig.me for Instagram usernames.
func ChatLink(t Type, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return "", errors.New("chat link handle is empty")
	}

	switch t {
	case WhatsApp:
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, handle)
		if digits == "" {
			return "", errors.New("whatsapp number has no digits")
		}
		return "https://wa.me/" + digits, nil
	case Facebook:
		return "https://m.me/" + handle, nil
	case Instagram:
		return "https://ig.me/m/" + strings.TrimPrefix(handle, "@"), nil
	}
	return "", ErrUnknownChannel
}
