package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// VerifySignature checks an X-Hub-Signature-256 header against the raw
// request body. The comparison is constant time; any malformed header or an
// empty secret fails verification.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false
	}

	sig := strings.TrimSpace(signatureHeader)
	if !strings.HasPrefix(sig, signaturePrefix) {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(sig, signaturePrefix))
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Sign produces the header value Meta would send for body
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
