package paymongo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsk_test_secret"
	body := []byte(`{"data":{"id":"evt_1"}}`)
	ts := "1718000000"
	sig := Hmac256([]byte(ts+"."+string(body)), []byte(secret))

	t.Run("valid live signature", func(t *testing.T) {
		header := fmt.Sprintf("t=%s,te=,li=%s", ts, sig)
		assert.True(t, VerifySignature(body, header, secret))
	})

	t.Run("valid test signature", func(t *testing.T) {
		header := fmt.Sprintf("t=%s,te=%s,li=", ts, sig)
		assert.True(t, VerifySignature(body, header, secret))
	})

	t.Run("tampered body", func(t *testing.T) {
		header := fmt.Sprintf("t=%s,te=,li=%s", ts, sig)
		assert.False(t, VerifySignature([]byte(`{"data":{"id":"evt_2"}}`), header, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := fmt.Sprintf("t=%s,te=,li=%s", ts, sig)
		assert.False(t, VerifySignature(body, header, "whsk_other"))
	})

	t.Run("missing timestamp", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "te=abc,li=def", secret))
	})

	t.Run("garbage header", func(t *testing.T) {
		assert.False(t, VerifySignature(body, "not-a-signature", secret))
	})
}

func TestVerifyWebhookSignature(t *testing.T) {
	t.Run("no secret skips verification", func(t *testing.T) {
		c := NewClient(&Config{SecretKey: "sk_test"})
		assert.True(t, c.VerifyWebhookSignature([]byte("anything"), "t=1,li=bogus"))
	})

	t.Run("configured secret enforces", func(t *testing.T) {
		c := NewClient(&Config{SecretKey: "sk_test", WebhookSecret: "whsk"})
		assert.False(t, c.VerifyWebhookSignature([]byte("anything"), "t=1,li=bogus"))
	})
}
