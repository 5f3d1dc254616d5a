package paymongo

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// The provider nests resource fields under "attributes" on direct API
// fetches but sometimes delivers them flat (or doubly nested) in webhook
// payloads. All of that variance is collapsed here, at the client
// boundary; nothing downstream ever branches on payload shape.

// Intent is the normalized view of a payment_intent resource.
type Intent struct {
	ID               string
	Status           string // awaiting_payment_method, awaiting_next_action, processing, succeeded, cancelled
	Amount           int64
	Currency         string
	ClientKey        string
	Metadata         map[string]string
	LastPaymentError string
	Payments         []Payment
}

// Payment is the normalized view of a payment resource.
type Payment struct {
	ID              string
	PaymentIntentID string
	Status          string // pending, paid, failed
	Amount          int64
	Currency        string
	Metadata        map[string]string
}

// Source is the normalized view of a source resource.
type Source struct {
	ID              string
	PaymentIntentID string
	Status          string // pending, chargeable, paid, expired, cancelled
	Amount          int64
	Metadata        map[string]string
}

// CheckoutSession is the normalized view of a checkout_session resource.
type CheckoutSession struct {
	ID              string
	CheckoutURL     string
	PaymentIntentID string
	Status          string
	Metadata        map[string]string
}

// rawResource is the union wire shape. Every field that may appear either
// flat or under attributes is read from both places.
type rawResource struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Attributes  *rawResource    `json:"attributes"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ClientKey   string          `json:"client_key"`
	CheckoutURL string          `json:"checkout_url"`

	PaymentIntentID string            `json:"payment_intent_id"`
	Metadata        map[string]string `json:"metadata"`

	LastPaymentError json.RawMessage `json:"last_payment_error"`
	Payments         []rawEnvelope   `json:"payments"`
}

type rawEnvelope struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	Attributes *rawResource `json:"attributes"`
}

// flatten resolves the attributes fallback chain: values on the nested
// attributes object win, then the flat resource.
func (r *rawResource) flatten() rawResource {
	if r == nil {
		return rawResource{}
	}
	out := *r
	if r.Attributes != nil {
		inner := r.Attributes.flatten()
		if inner.Status != "" {
			out.Status = inner.Status
		}
		if !inner.Amount.IsZero() {
			out.Amount = inner.Amount
		}
		if inner.Currency != "" {
			out.Currency = inner.Currency
		}
		if inner.ClientKey != "" {
			out.ClientKey = inner.ClientKey
		}
		if inner.CheckoutURL != "" {
			out.CheckoutURL = inner.CheckoutURL
		}
		if inner.PaymentIntentID != "" {
			out.PaymentIntentID = inner.PaymentIntentID
		}
		if inner.Metadata != nil {
			out.Metadata = inner.Metadata
		}
		if len(inner.LastPaymentError) > 0 {
			out.LastPaymentError = inner.LastPaymentError
		}
		if len(inner.Payments) > 0 {
			out.Payments = inner.Payments
		}
	}
	return out
}

func (r *rawResource) toIntent() *Intent {
	flat := r.flatten()

	intent := &Intent{
		ID:               r.ID,
		Status:           flat.Status,
		Amount:           flat.Amount.IntPart(),
		Currency:         flat.Currency,
		ClientKey:        flat.ClientKey,
		Metadata:         flat.Metadata,
		LastPaymentError: lastErrorText(flat.LastPaymentError),
	}
	for _, p := range flat.Payments {
		intent.Payments = append(intent.Payments, envelopeToPayment(p))
	}
	return intent
}

func envelopeToPayment(e rawEnvelope) Payment {
	flat := e.Attributes.flatten()
	return Payment{
		ID:              e.ID,
		PaymentIntentID: flat.PaymentIntentID,
		Status:          flat.Status,
		Amount:          flat.Amount.IntPart(),
		Currency:        flat.Currency,
		Metadata:        flat.Metadata,
	}
}

func envelopeToSource(e rawEnvelope) Source {
	flat := e.Attributes.flatten()
	return Source{
		ID:              e.ID,
		PaymentIntentID: flat.PaymentIntentID,
		Status:          flat.Status,
		Amount:          flat.Amount.IntPart(),
		Metadata:        flat.Metadata,
	}
}

func (r *rawResource) toSource() *Source {
	flat := r.flatten()
	return &Source{
		ID:              r.ID,
		PaymentIntentID: flat.PaymentIntentID,
		Status:          flat.Status,
		Amount:          flat.Amount.IntPart(),
		Metadata:        flat.Metadata,
	}
}

func (r *rawResource) toCheckoutSession() *CheckoutSession {
	flat := r.flatten()
	return &CheckoutSession{
		ID:              r.ID,
		CheckoutURL:     flat.CheckoutURL,
		PaymentIntentID: flat.PaymentIntentID,
		Status:          flat.Status,
		Metadata:        flat.Metadata,
	}
}

// lastErrorText keeps whatever the provider put in last_payment_error
// without committing to its shape. "null" and empty become "".
func lastErrorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var m struct {
		Failed struct {
			Message string `json:"message"`
		} `json:"failed_message"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Failed.Message != "" {
			return m.Failed.Message
		}
	}
	return string(raw)
}
