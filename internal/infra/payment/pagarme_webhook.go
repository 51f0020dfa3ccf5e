package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyWebhookSignature checks the X-Hub-Signature header Pagar.me sends
// with each webhook: HMAC-SHA256 of the raw body, hex encoded, optionally
// prefixed with "sha256=".
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
