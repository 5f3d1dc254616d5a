package status

import "errors"

var (
	// ErrNotFound means no local record correlates the payment intent.
	// Either the id is bogus or it belongs to another user.
	ErrNotFound = errors.New("payment: intent not found or access denied")

	// ErrUnauthorized means the caller carries no valid credentials.
	ErrUnauthorized = errors.New("payment: unauthorized")

	// ErrGatewayUnavailable means the upstream request failed or timed out.
	// Recoverable: callers fall back to the locally persisted status.
	ErrGatewayUnavailable = errors.New("gateway: unavailable")

	// ErrSignatureInvalid means a webhook signature did not match.
	ErrSignatureInvalid = errors.New("webhook: invalid signature")

	// ErrAlreadySettled is the idempotent no-op outcome, not a failure.
	ErrAlreadySettled = errors.New("payment: already settled")

	ErrFailedPayment = errors.New("payment: payment failed")

	// ErrInvalidInput covers business validation failures: bad amount,
	// free event, missing required field.
	ErrInvalidInput = errors.New("payment: invalid input")
)

// SettlementState is the per-invocation outcome of reconciling a payment
// intent against gateway evidence and the local ledger.
type SettlementState string

const (
	// StateUnknown: no local record references the intent. Terminal error.
	StateUnknown SettlementState = "unknown"

	// StatePending: a local record exists but no settlement evidence yet.
	// The caller should poll again or wait for the next webhook delivery.
	StatePending SettlementState = "pending"

	// StateSettled: effects applied (now or by an earlier invocation).
	StateSettled SettlementState = "settled"

	// StateFailed: the gateway reported an explicit failure or
	// cancellation. The local record stays pending so checkout can be
	// retried with a fresh attempt.
	StateFailed SettlementState = "failed"
)

// Trigger tags which delivery path asked for reconciliation.
type Trigger string

const (
	TriggerWebhook    Trigger = "webhook"
	TriggerClientPoll Trigger = "client-poll"
)

func (t Trigger) String() string {
	return string(t)
}
