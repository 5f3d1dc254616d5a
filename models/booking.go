package models

import (
	"time"
)

// Booking is created in "pending" state before settlement for paid
// events. The reconciliation engine flips it to "confirmed" exactly once.
type Booking struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	EventID       string    `json:"event_id"`
	PaymentStatus string    `json:"payment_status"` // pending, confirmed, rejected
	CreatedAt     time.Time `json:"created_at"`
}

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingRejected  = "rejected"
)

// Ticket exists at most once per booking. Its presence is the idempotency
// guard for issuance: the unique index on booking_id makes a concurrent
// double-create fail at the storage layer.
type Ticket struct {
	ID           string    `json:"id"`
	BookingID    string    `json:"booking_id"`
	TicketNumber string    `json:"ticket_number"`
	QRPayload    string    `json:"qr_payload"`
	Status       string    `json:"status"` // active, used, void
	CreatedAt    time.Time `json:"created_at"`
}

const (
	TicketActive = "active"
	TicketUsed   = "used"
	TicketVoid   = "void"
)

type Notification struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Link    string         `json:"link"`
	Meta    map[string]any `json:"meta,omitempty"`
}
