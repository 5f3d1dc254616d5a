package models

import (
	"time"
)

// Transaction is the money-side record of a booking purchase. Created as
// "pending" when the payment intent is issued; only the reconciliation
// engine moves it to "completed".
type Transaction struct {
	ID               string     `json:"id"`
	EventID          string     `json:"event_id"`
	BookingID        string     `json:"booking_id"`
	UserID           string     `json:"user_id"`
	PaymentIntentID  string     `json:"payment_intent_id"`
	Amount           int64      `json:"amount"` // centavos
	PlatformFee      int64      `json:"platform_fee"`
	OrganizerRevenue int64      `json:"organizer_revenue"`
	Status           string     `json:"status"` // pending, completed, refunded, failed
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionRefunded  = "refunded"
	TransactionFailed    = "failed"
)

// Payout aggregates the organizer revenue of completed transactions that
// have not been paid out yet. A transaction id appears in at most one
// payout.
type Payout struct {
	ID             string     `json:"id"`
	OrganizerID    string     `json:"organizer_id"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"` // pending, processing, completed, failed
	PaymentMethod  string     `json:"payment_method"`
	TransactionIDs []string   `json:"transaction_ids"`
	RequestedAt    time.Time  `json:"requested_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)
