package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hmac256 generates a hex-encoded HMAC-SHA256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifyWebhookSignature checks the Paymongo-Signature header against the
// raw request body. The header carries "t=<ts>,te=<test>,li=<live>"; the
// signed message is "<ts>.<raw body>", so verification must run on the
// exact bytes received, never on a reserialized payload.
//
// With no secret configured verification passes unconditionally: local
// development runs without webhook secrets, and that trade-off is
// accepted rather than accidental.
func (c *Client) VerifyWebhookSignature(body []byte, header string) bool {
	if c.webhookSecret == "" {
		return true
	}
	return VerifySignature(body, header, c.webhookSecret)
}

func VerifySignature(body []byte, header, secret string) bool {
	var timestamp, testSig, liveSig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "te":
			testSig = v
		case "li":
			liveSig = v
		}
	}
	if timestamp == "" {
		return false
	}

	message := make([]byte, 0, len(timestamp)+1+len(body))
	message = append(message, timestamp...)
	message = append(message, '.')
	message = append(message, body...)
	expected := Hmac256(message, []byte(secret))

	// Either mode's signature may be present depending on the account.
	if liveSig != "" && hmac.Equal([]byte(liveSig), []byte(expected)) {
		return true
	}
	if testSig != "" && hmac.Equal([]byte(testSig), []byte(expected)) {
		return true
	}
	return false
}
