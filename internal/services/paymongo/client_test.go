package paymongo

import (
	"encoding/base64"
	"event-marketplace/internal/status"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{SecretKey: "sk_test_123", BaseURL: server.URL})
}

func TestClientAuth(t *testing.T) {
	var gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{"id":"pi_1","attributes":{"status":"succeeded","amount":10000,"currency":"PHP"}}}`))
	})

	_, err := c.Intent(t.Context(), "pi_1")
	require.NoError(t, err)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("sk_test_123:"))
	assert.Equal(t, want, gotAuth)
}

func TestIntentNormalization(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_1", r.URL.Path)
		w.Write([]byte(`{"data":{
			"id":"pi_1",
			"attributes":{
				"status":"awaiting_payment_method",
				"amount":49900,
				"currency":"PHP",
				"client_key":"pi_1_client_abc",
				"metadata":{"planId":"plan_pro","userId":"u1"},
				"last_payment_error":null,
				"payments":[{"id":"pay_1","attributes":{"status":"paid","amount":49900,"payment_intent_id":"pi_1"}}]
			}}}`))
	})

	intent, err := c.Intent(t.Context(), "pi_1")
	require.NoError(t, err)

	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "awaiting_payment_method", intent.Status)
	assert.Equal(t, int64(49900), intent.Amount)
	assert.Equal(t, "pi_1_client_abc", intent.ClientKey)
	assert.Equal(t, "plan_pro", intent.Metadata["planId"])
	assert.Empty(t, intent.LastPaymentError)
	require.Len(t, intent.Payments, 1)
	assert.Equal(t, "paid", intent.Payments[0].Status)
	assert.Equal(t, "pi_1", intent.Payments[0].PaymentIntentID)
}

func TestErrorDetailSurfaced(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"code":"parameter_invalid","detail":"amount must be at least 2000"}]}`))
	})

	_, err := c.CreateIntent(t.Context(), &CreateIntentRequest{Amount: 100, Currency: "PHP"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "amount must be at least 2000", apiErr.Detail)
}

func TestTransportErrorIsGatewayUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on
	c := NewClient(&Config{SecretKey: "sk", BaseURL: server.URL})

	_, err := c.Intent(t.Context(), "pi_1")
	assert.ErrorIs(t, err, status.ErrGatewayUnavailable)
}

func TestPaymentsByIntentFilters(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"id":"pay_1","attributes":{"status":"paid","amount":10000,"payment_intent_id":"pi_1"}},
			{"id":"pay_2","attributes":{"status":"paid","amount":5000,"payment_intent_id":"pi_other"}}
		]}`))
	})

	payments, err := c.PaymentsByIntent(t.Context(), "pi_1")
	require.NoError(t, err)

	require.Len(t, payments, 1)
	assert.Equal(t, "pay_1", payments[0].ID)
}

func TestOpenBreakerReportsGatewayUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on
	c := NewClient(&Config{SecretKey: "sk", BaseURL: server.URL})

	// enough consecutive failures to trip the breaker
	for i := 0; i < 100; i++ {
		_, _ = c.Intent(t.Context(), "pi_1")
	}

	_, err := c.Intent(t.Context(), "pi_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrGatewayUnavailable)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestSourcesByIntentFilters(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sources", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"id":"src_1","attributes":{"status":"paid","amount":10000,"payment_intent_id":"pi_1"}},
			{"id":"src_2","attributes":{"status":"pending","amount":5000,"payment_intent_id":"pi_other"}}
		]}`))
	})

	sources, err := c.SourcesByIntent(t.Context(), "pi_1")
	require.NoError(t, err)

	require.Len(t, sources, 1)
	assert.Equal(t, "src_1", sources[0].ID)
	assert.Equal(t, "paid", sources[0].Status)
}

func TestParseWebhookEvent(t *testing.T) {
	t.Run("enveloped delivery", func(t *testing.T) {
		body := `{"data":{"id":"evt_1","attributes":{"type":"payment.paid","data":{"id":"pay_1","attributes":{"status":"paid","amount":10000,"payment_intent_id":"pi_1"}}}}}`

		event, err := ParseWebhookEvent([]byte(body))
		require.NoError(t, err)

		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "payment.paid", event.Type)
		assert.Equal(t, "pi_1", event.IntentID())

		payment := event.ResourcePayment()
		assert.Equal(t, "pay_1", payment.ID)
		assert.Equal(t, "paid", payment.Status)
		assert.Equal(t, int64(10000), payment.Amount)
	})

	t.Run("flat delivery", func(t *testing.T) {
		body := `{"type":"source.chargeable","data":{"id":"src_1","status":"chargeable","amount":49900}}`

		event, err := ParseWebhookEvent([]byte(body))
		require.NoError(t, err)

		assert.Equal(t, "source.chargeable", event.Type)
		source := event.ResourceSource()
		assert.Equal(t, "src_1", source.ID)
		assert.Equal(t, "chargeable", source.Status)
		assert.Equal(t, int64(49900), source.Amount)
	})

	t.Run("intent reference from checkout metadata", func(t *testing.T) {
		body := `{"data":{"id":"evt_2","attributes":{"type":"checkout_session.payment.paid","data":{"id":"cs_1","attributes":{"status":"paid","metadata":{"paymentIntentId":"pi_9"}}}}}}`

		event, err := ParseWebhookEvent([]byte(body))
		require.NoError(t, err)

		assert.Equal(t, "pi_9", event.IntentID())
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := ParseWebhookEvent([]byte(`{"type":`))
		assert.Error(t, err)
	})
}
