package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	// SignatureHeader carries the hex-encoded HMAC-SHA256 digest of the request body.
	SignatureHeader = "X-Webhook-Signature"

	// EventHeader carries the event name so receivers can route before parsing the body.
	EventHeader = "X-Webhook-Event"
)

// Sign computes the hex-encoded HMAC-SHA256 signature of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature against the expected digest in
// constant time. Receivers must use this rather than a string comparison.
func VerifySignature(secret string, payload []byte, signature string) error {
	expected := Sign(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
