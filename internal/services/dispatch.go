package services

import (
	"context"
	"errors"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"
	"event-marketplace/utils"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"github.com/pocketbase/pocketbase/tools/mailer"
)

// Mailer is the slice of the mail client the dispatcher needs.
type Mailer interface {
	Send(message *mailer.Message) error
}

// Dispatcher applies the side effects of a settled payment. It runs only
// after the settlement winner has been decided; the ticket existence
// check makes re-entry from a crashed half-applied run safe.
type Dispatcher struct {
	ledger  Ledger
	pubnub  *pubnub.PubNub
	mail    Mailer
	sender  mail.Address
	baseURL string
	logger  *slog.Logger
}

func NewDispatcher(l Ledger, pn *pubnub.PubNub, mailClient Mailer, sender mail.Address, baseURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ledger:  l,
		pubnub:  pn,
		mail:    mailClient,
		sender:  sender,
		baseURL: baseURL,
		logger:  logger,
	}
}

// BookingConfirmed issues the ticket and the follow-on effects for a
// freshly confirmed booking. The ticket lookup is the re-entry guard: a
// ticket already on file means a previous run got this far and the whole
// dispatch is a no-op. Everything up to the notification propagates on
// failure; the realtime push and the email are best-effort.
func (d *Dispatcher) BookingConfirmed(ctx context.Context, booking *models.Booking, tx *models.Transaction) error {
	if _, err := d.ledger.TicketByBooking(ctx, booking.ID); err == nil {
		return nil
	} else if !errors.Is(err, status.ErrNotFound) {
		return fmt.Errorf("BookingConfirmed: %w", err)
	}

	number, err := ticketNumber()
	if err != nil {
		return fmt.Errorf("BookingConfirmed: %w", err)
	}

	ticket := &models.Ticket{
		BookingID:    booking.ID,
		TicketNumber: number,
		QRPayload:    d.baseURL + "/verify-ticket/" + number,
	}
	if err := d.ledger.CreateTicket(ctx, ticket); err != nil {
		return fmt.Errorf("BookingConfirmed: %w", err)
	}

	if err := d.ledger.DecrementAvailableTickets(ctx, booking.EventID); err != nil {
		return fmt.Errorf("BookingConfirmed: %w", err)
	}

	event, err := d.ledger.EventByID(ctx, booking.EventID)
	if err != nil {
		return fmt.Errorf("BookingConfirmed: %w", err)
	}

	notification := &models.Notification{
		UserID:  booking.UserID,
		Type:    "booking_confirmed",
		Title:   "Booking confirmed",
		Message: fmt.Sprintf("Your payment for %s went through. Ticket %s is ready.", event.Title, number),
		Link:    "/bookings/" + booking.ID,
		Meta: map[string]any{
			"bookingId":    booking.ID,
			"eventId":      booking.EventID,
			"ticketNumber": number,
		},
	}
	if err := d.ledger.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("BookingConfirmed: %w", err)
	}

	d.publish(booking.UserID, map[string]any{
		"type":         "payment_success",
		"bookingId":    booking.ID,
		"eventId":      booking.EventID,
		"ticketNumber": number,
	})

	d.sendTicketEmail(ctx, booking, event, ticket, tx)

	return nil
}

// SubscriptionActivated records and pushes the activation notice.
func (d *Dispatcher) SubscriptionActivated(ctx context.Context, sub *models.Subscription) error {
	notification := &models.Notification{
		UserID:  sub.UserID,
		Type:    "subscription_activated",
		Title:   "Subscription active",
		Message: "Your subscription payment went through.",
		Link:    "/account/subscription",
		Meta: map[string]any{
			"subscriptionId": sub.ID,
			"planId":         sub.PlanID,
		},
	}
	if err := d.ledger.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("SubscriptionActivated: %w", err)
	}

	d.publish(sub.UserID, map[string]any{
		"type":           "subscription_activated",
		"subscriptionId": sub.ID,
		"planId":         sub.PlanID,
	})

	return nil
}

func (d *Dispatcher) publish(userID string, message map[string]any) {
	if d.pubnub == nil {
		return
	}

	channel := fmt.Sprintf("user-%s", userID)
	if _, _, err := d.pubnub.Publish().Channel(channel).Message(message).Execute(); err != nil {
		d.logger.Warn("pubnub publish failed", "channel", channel, "error", err)
	}
}

// sendTicketEmail is fire-and-forget: a lost email never unwinds an
// issued ticket, the purchaser can still pull it from their bookings.
func (d *Dispatcher) sendTicketEmail(ctx context.Context, booking *models.Booking, event *models.Event, ticket *models.Ticket, tx *models.Transaction) {
	if d.mail == nil {
		return
	}

	email, err := d.ledger.UserEmail(ctx, booking.UserID)
	if err != nil || email == "" {
		monitoring.TrackEmailFailure("ticket_confirmation")
		d.logger.Warn("ticket email skipped, no address", "bookingId", booking.ID, "error", err)
		return
	}

	message := &mailer.Message{
		From:    d.sender,
		To:      []mail.Address{{Address: email}},
		Subject: "Your ticket for " + event.Title,
		HTML: fmt.Sprintf(
			`<p>Your booking for <strong>%s</strong> is confirmed.</p>
<p>Ticket number: <strong>%s</strong></p>
<p>Amount paid: %s %.2f</p>
<p><a href="%s">Show QR code</a></p>`,
			event.Title, ticket.TicketNumber, strings.ToUpper(event.Currency), float64(tx.Amount)/100, ticket.QRPayload,
		),
	}
	if err := d.mail.Send(message); err != nil {
		monitoring.TrackEmailFailure("ticket_confirmation")
		d.logger.Warn("ticket email failed", "bookingId", booking.ID, "error", err)
	}
}

// ticketNumber builds a "TKT-<base36 ms>-<8 hex>" identifier. The
// timestamp part orders tickets, the random part makes collisions within
// the same millisecond a non-issue.
func ticketNumber() (string, error) {
	suffix, err := utils.GenerateCode(4)
	if err != nil {
		return "", fmt.Errorf("ticketNumber: %w", err)
	}
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	return fmt.Sprintf("TKT-%s-%s", ts, suffix), nil
}
