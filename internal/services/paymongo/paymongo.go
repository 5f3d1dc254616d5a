package paymongo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

type CreateIntentRequest struct {
	Amount         int64             `json:"amount"` // centavos
	Currency       string            `json:"currency"`
	PaymentMethods []string          `json:"payment_methods"`
	Metadata       map[string]string `json:"metadata"`
}

var defaultPaymentMethods = []string{"card", "gcash", "grab_pay", "paymaya"}

// CreateIntent creates a payment intent. The metadata is echoed back
// unmodified by the provider on every later fetch, which is what lets
// settlement recover the purchase context (event, plan, promo code).
func (c *Client) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error) {
	methods := req.PaymentMethods
	if len(methods) == 0 {
		methods = defaultPaymentMethods
	}

	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"amount":                 req.Amount,
				"currency":               req.Currency,
				"payment_method_allowed": methods,
				"metadata":               req.Metadata,
			},
		},
	}

	var reply struct {
		Data rawResource `json:"data"`
	}
	if err := c.request(ctx, http.MethodPost, "/payment_intents", payload, &reply); err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}
	return reply.Data.toIntent(), nil
}

// Intent fetches a payment intent, metadata included.
func (c *Client) Intent(ctx context.Context, intentID string) (*Intent, error) {
	var reply struct {
		Data rawResource `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(intentID), nil, &reply); err != nil {
		return nil, fmt.Errorf("Intent: %w", err)
	}
	return reply.Data.toIntent(), nil
}

// PaymentsByIntent lists recent payments and keeps the ones attached to
// the given intent. The provider has no server-side intent filter on this
// listing, so the filter runs here.
func (c *Client) PaymentsByIntent(ctx context.Context, intentID string) ([]Payment, error) {
	var reply struct {
		Data []rawEnvelope `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/payments?limit=100", nil, &reply); err != nil {
		return nil, fmt.Errorf("PaymentsByIntent: %w", err)
	}

	var payments []Payment
	for _, e := range reply.Data {
		p := envelopeToPayment(e)
		if p.PaymentIntentID == intentID {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// Source fetches a single source resource.
func (c *Client) Source(ctx context.Context, sourceID string) (*Source, error) {
	var reply struct {
		Data rawResource `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/sources/"+url.PathEscape(sourceID), nil, &reply); err != nil {
		return nil, fmt.Errorf("Source: %w", err)
	}
	return reply.Data.toSource(), nil
}

// SourcesByIntent lists recent sources and keeps the ones attached to
// the given intent, same client-side filter as PaymentsByIntent.
func (c *Client) SourcesByIntent(ctx context.Context, intentID string) ([]Source, error) {
	var reply struct {
		Data []rawEnvelope `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/sources?limit=100", nil, &reply); err != nil {
		return nil, fmt.Errorf("SourcesByIntent: %w", err)
	}

	var sources []Source
	for _, e := range reply.Data {
		src := envelopeToSource(e)
		if src.PaymentIntentID == intentID {
			sources = append(sources, src)
		}
	}
	return sources, nil
}

type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateCheckoutSession creates a hosted checkout session and returns the
// redirect URL the purchaser completes payment on. A nil methods slice
// allows every supported payment method.
func (c *Client) CreateCheckoutSession(ctx context.Context, items []LineItem, methods []string, successURL, cancelURL string, metadata map[string]string) (*CheckoutSession, error) {
	if len(methods) == 0 {
		methods = defaultPaymentMethods
	}

	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"line_items":           items,
				"payment_method_types": methods,
				"success_url":          successURL,
				"cancel_url":           cancelURL,
				"metadata":             metadata,
			},
		},
	}

	var reply struct {
		Data rawResource `json:"data"`
	}
	if err := c.request(ctx, http.MethodPost, "/checkout_sessions", payload, &reply); err != nil {
		return nil, fmt.Errorf("CreateCheckoutSession: %w", err)
	}
	return reply.Data.toCheckoutSession(), nil
}

// CreateRefund refunds a payment, fully when amount is 0.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount int64, reason string) (string, error) {
	if reason == "" {
		reason = "requested_by_customer"
	}
	attrs := map[string]any{
		"payment": paymentID,
		"reason":  reason,
	}
	if amount > 0 {
		attrs["amount"] = amount
	}

	var reply struct {
		Data rawResource `json:"data"`
	}
	if err := c.request(ctx, http.MethodPost, "/refunds", map[string]any{"data": map[string]any{"attributes": attrs}}, &reply); err != nil {
		return "", fmt.Errorf("CreateRefund: %w", err)
	}
	return reply.Data.ID, nil
}

// WebhookEvent is a normalized inbound webhook delivery.
type WebhookEvent struct {
	ID       string
	Type     string
	Resource rawResource
}

// IntentID resolves the payment intent reference carried by the event's
// resource, wherever the provider put it.
func (e *WebhookEvent) IntentID() string {
	flat := e.Resource.flatten()
	if flat.PaymentIntentID != "" {
		return flat.PaymentIntentID
	}
	// checkout_session events reference the intent via metadata
	if flat.Metadata != nil {
		return flat.Metadata["paymentIntentId"]
	}
	return ""
}

func (e *WebhookEvent) ResourceSource() *Source {
	return e.Resource.toSource()
}

func (e *WebhookEvent) ResourcePayment() Payment {
	return envelopeToPayment(rawEnvelope{ID: e.Resource.ID, Attributes: &e.Resource})
}

// ParseWebhookEvent accepts both the enveloped delivery shape
// {"data":{"id":..,"attributes":{"type":..,"data":{..}}}} and the flat
// {"type":..,"data":{..}} shape.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var outer struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("ParseWebhookEvent: json.Unmarshal: %w", err)
	}

	var probe struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"attributes"`
	}
	if len(outer.Data) > 0 {
		if err := json.Unmarshal(outer.Data, &probe); err != nil {
			return nil, fmt.Errorf("ParseWebhookEvent: data: %w", err)
		}
	}

	event := &WebhookEvent{ID: probe.ID, Type: outer.Type}

	// Enveloped form: the event type and resource live one level down.
	if probe.Attributes.Type != "" && len(probe.Attributes.Data) > 0 {
		event.Type = probe.Attributes.Type
		if err := json.Unmarshal(probe.Attributes.Data, &event.Resource); err != nil {
			return nil, fmt.Errorf("ParseWebhookEvent: resource: %w", err)
		}
		return event, nil
	}

	if len(outer.Data) > 0 {
		if err := json.Unmarshal(outer.Data, &event.Resource); err != nil {
			return nil, fmt.Errorf("ParseWebhookEvent: resource: %w", err)
		}
	}
	return event, nil
}
