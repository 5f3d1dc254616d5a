package ledger

import (
	"context"
	"database/sql"
	"errors"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Store is the persisted source of truth for "has this already been
// processed". It is constructed once at startup and passed by reference;
// there is no package-level handle.
//
// Status transitions that must happen at most once go through conditional
// UPDATE ... WHERE status = <expected> statements instead of record
// overwrites, so two racing settlements cannot both win.
type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

func wrapNotFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, status.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// --- subscriptions ---

func (s *Store) SubscriptionByIntent(ctx context.Context, intentID string) (*models.Subscription, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"subscriptions",
		"payment_intent_id = {:intent}",
		dbx.Params{"intent": intentID},
	)
	if err != nil {
		return nil, wrapNotFound("SubscriptionByIntent", err)
	}
	return recordToSubscription(record), nil
}

func (s *Store) SubscriptionByIntentForUser(ctx context.Context, userID, intentID string) (*models.Subscription, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"subscriptions",
		"payment_intent_id = {:intent} && user_id = {:user}",
		dbx.Params{"intent": intentID, "user": userID},
	)
	if err != nil {
		return nil, wrapNotFound("SubscriptionByIntentForUser", err)
	}
	return recordToSubscription(record), nil
}

// ActiveSubscriptionForUser returns the user's current active/trialing
// subscription, excluding excludeID. Uniqueness of the active
// subscription is a read-time filter, not a storage constraint.
func (s *Store) ActiveSubscriptionForUser(ctx context.Context, userID, excludeID string) (*models.Subscription, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"subscriptions",
		"user_id = {:user} && (status = 'active' || status = 'trialing') && id != {:exclude}",
		dbx.Params{"user": userID, "exclude": excludeID},
	)
	if err != nil {
		return nil, wrapNotFound("ActiveSubscriptionForUser", err)
	}
	return recordToSubscription(record), nil
}

// IncompleteSubscriptions lists subscriptions still waiting on payment.
func (s *Store) IncompleteSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	records, err := s.app.FindRecordsByFilter(
		"subscriptions",
		"status = {:status}",
		"-created",
		200,
		0,
		dbx.Params{"status": models.SubscriptionIncomplete},
	)
	if err != nil {
		return nil, fmt.Errorf("IncompleteSubscriptions: %w", err)
	}

	subs := make([]models.Subscription, 0, len(records))
	for _, r := range records {
		subs = append(subs, *recordToSubscription(r))
	}
	return subs, nil
}

// ActivateSubscription flips the subscription to active and, when planID
// is non-empty, overwrites the plan with what was actually purchased.
// Returns false when the subscription was already active (or canceled),
// which is the idempotent no-op path.
func (s *Store) ActivateSubscription(ctx context.Context, subscriptionID, planID string) (bool, error) {
	q := s.app.NonconcurrentDB().NewQuery(
		`UPDATE subscriptions
		 SET status = {:active}, plan_id = COALESCE(NULLIF({:plan}, ''), plan_id)
		 WHERE id = {:id} AND status = {:incomplete}`,
	).Bind(dbx.Params{
		"active":     models.SubscriptionActive,
		"incomplete": models.SubscriptionIncomplete,
		"plan":       planID,
		"id":         subscriptionID,
	})

	result, err := q.WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("ActivateSubscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ActivateSubscription: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) PlanPrice(ctx context.Context, planID string) (int64, error) {
	record, err := s.app.FindRecordById("plans", planID)
	if err != nil {
		return 0, wrapNotFound("PlanPrice", err)
	}
	return int64(record.GetInt("price")), nil
}

// --- transactions ---

func (s *Store) TransactionByIntent(ctx context.Context, intentID string) (*models.Transaction, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"transactions",
		"payment_intent_id = {:intent}",
		dbx.Params{"intent": intentID},
	)
	if err != nil {
		return nil, wrapNotFound("TransactionByIntent", err)
	}
	return recordToTransaction(record), nil
}

// CompleteTransaction moves a pending transaction to completed. Returns
// false when some earlier settlement already completed it.
func (s *Store) CompleteTransaction(ctx context.Context, transactionID string) (bool, error) {
	result, err := s.app.NonconcurrentDB().NewQuery(
		`UPDATE transactions
		 SET status = {:completed}, completed_at = {:now}
		 WHERE id = {:id} AND status = {:pending}`,
	).Bind(dbx.Params{
		"completed": models.TransactionCompleted,
		"pending":   models.TransactionPending,
		"now":       types.NowDateTime().String(),
		"id":        transactionID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("CompleteTransaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CompleteTransaction: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkTransactionRefunded(ctx context.Context, transactionID string) error {
	_, err := s.app.NonconcurrentDB().NewQuery(
		`UPDATE transactions SET status = {:refunded} WHERE id = {:id} AND status = {:completed}`,
	).Bind(dbx.Params{
		"refunded":  models.TransactionRefunded,
		"completed": models.TransactionCompleted,
		"id":        transactionID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("MarkTransactionRefunded: %w", err)
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) (string, error) {
	collection, err := s.app.FindCollectionByNameOrId("transactions")
	if err != nil {
		return "", fmt.Errorf("CreateTransaction: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("event_id", t.EventID)
	record.Set("booking_id", t.BookingID)
	record.Set("user_id", t.UserID)
	record.Set("payment_intent_id", t.PaymentIntentID)
	record.Set("amount", t.Amount)
	record.Set("platform_fee", t.PlatformFee)
	record.Set("organizer_revenue", t.OrganizerRevenue)
	record.Set("status", models.TransactionPending)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return "", fmt.Errorf("CreateTransaction: %w", err)
	}
	return record.Id, nil
}

// CompletedTransactionsForOrganizer returns completed transactions across
// all of the organizer's events, newest first.
func (s *Store) CompletedTransactionsForOrganizer(ctx context.Context, organizerID string) ([]models.Transaction, error) {
	events, err := s.app.FindAllRecords("events", dbx.HashExp{"organizer_id": organizerID})
	if err != nil {
		return nil, fmt.Errorf("CompletedTransactionsForOrganizer: events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	eventIDs := make([]any, 0, len(events))
	for _, e := range events {
		eventIDs = append(eventIDs, e.Id)
	}

	records, err := s.app.FindAllRecords("transactions",
		dbx.HashExp{"status": models.TransactionCompleted},
		dbx.In("event_id", eventIDs...),
	)
	if err != nil {
		return nil, fmt.Errorf("CompletedTransactionsForOrganizer: %w", err)
	}

	txs := make([]models.Transaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, *recordToTransaction(r))
	}
	return txs, nil
}

// --- bookings ---

func (s *Store) BookingByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	record, err := s.app.FindRecordById("bookings", bookingID)
	if err != nil {
		return nil, wrapNotFound("BookingByID", err)
	}
	return recordToBooking(record), nil
}

// ConfirmBooking flips payment_status pending -> confirmed. The returned
// bool reports whether this call was the one that flipped it; only the
// winner of a race proceeds to side effects.
func (s *Store) ConfirmBooking(ctx context.Context, bookingID string) (bool, error) {
	result, err := s.app.NonconcurrentDB().NewQuery(
		`UPDATE bookings
		 SET payment_status = {:confirmed}
		 WHERE id = {:id} AND payment_status = {:pending}`,
	).Bind(dbx.Params{
		"confirmed": models.BookingConfirmed,
		"pending":   models.BookingPending,
		"id":        bookingID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("ConfirmBooking: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ConfirmBooking: RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) (string, error) {
	collection, err := s.app.FindCollectionByNameOrId("bookings")
	if err != nil {
		return "", fmt.Errorf("CreateBooking: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("user_id", b.UserID)
	record.Set("event_id", b.EventID)
	record.Set("payment_status", models.BookingPending)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return "", fmt.Errorf("CreateBooking: %w", err)
	}
	return record.Id, nil
}

// --- tickets ---

func (s *Store) TicketByBooking(ctx context.Context, bookingID string) (*models.Ticket, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"booking_id = {:booking}",
		dbx.Params{"booking": bookingID},
	)
	if err != nil {
		return nil, wrapNotFound("TicketByBooking", err)
	}
	return recordToTicket(record), nil
}

// CreateTicket persists a new ticket. The unique index on booking_id is
// the last line of defense against concurrent double-issuance; a
// constraint violation here means another settlement won the race.
func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	collection, err := s.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		return fmt.Errorf("CreateTicket: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("booking_id", t.BookingID)
	record.Set("ticket_number", t.TicketNumber)
	record.Set("qr_payload", t.QRPayload)
	record.Set("status", models.TicketActive)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("CreateTicket: %w", err)
	}
	return nil
}

// --- events ---

func (s *Store) EventByID(ctx context.Context, eventID string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		return nil, wrapNotFound("EventByID", err)
	}
	return recordToEvent(record), nil
}

// DecrementAvailableTickets takes one ticket off the event's available
// count, floored at zero. Best-effort capacity tracking, not a
// reservation system.
func (s *Store) DecrementAvailableTickets(ctx context.Context, eventID string) error {
	_, err := s.app.NonconcurrentDB().NewQuery(
		`UPDATE events
		 SET available_tickets = available_tickets - 1
		 WHERE id = {:id} AND available_tickets > 0`,
	).Bind(dbx.Params{"id": eventID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("DecrementAvailableTickets: %w", err)
	}
	return nil
}

// --- notifications / users ---

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	collection, err := s.app.FindCollectionByNameOrId("notifications")
	if err != nil {
		return fmt.Errorf("CreateNotification: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("user_id", n.UserID)
	record.Set("type", n.Type)
	record.Set("title", n.Title)
	record.Set("message", n.Message)
	record.Set("link", n.Link)
	record.Set("meta", n.Meta)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("CreateNotification: %w", err)
	}
	return nil
}

func (s *Store) UserEmail(ctx context.Context, userID string) (string, error) {
	record, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return "", wrapNotFound("UserEmail", err)
	}
	return record.GetString("email"), nil
}

// --- payouts ---

func (s *Store) PayoutsByOrganizer(ctx context.Context, organizerID string) ([]models.Payout, error) {
	records, err := s.app.FindRecordsByFilter(
		"payouts",
		"organizer_id = {:organizer}",
		"-created",
		500,
		0,
		dbx.Params{"organizer": organizerID},
	)
	if err != nil {
		return nil, fmt.Errorf("PayoutsByOrganizer: %w", err)
	}

	payouts := make([]models.Payout, 0, len(records))
	for _, r := range records {
		payouts = append(payouts, *recordToPayout(r))
	}
	return payouts, nil
}

func (s *Store) CreatePayout(ctx context.Context, p *models.Payout) (string, error) {
	collection, err := s.app.FindCollectionByNameOrId("payouts")
	if err != nil {
		return "", fmt.Errorf("CreatePayout: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("organizer_id", p.OrganizerID)
	record.Set("amount", p.Amount)
	record.Set("currency", p.Currency)
	record.Set("status", models.PayoutPending)
	record.Set("payment_method", p.PaymentMethod)
	record.Set("transaction_ids", p.TransactionIDs)
	record.Set("requested_at", time.Now().UTC())

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return "", fmt.Errorf("CreatePayout: %w", err)
	}
	return record.Id, nil
}

// --- record mapping ---

func recordToSubscription(r *core.Record) *models.Subscription {
	return &models.Subscription{
		ID:              r.Id,
		UserID:          r.GetString("user_id"),
		PlanID:          r.GetString("plan_id"),
		Status:          r.GetString("status"),
		PaymentIntentID: r.GetString("payment_intent_id"),
	}
}

func recordToTransaction(r *core.Record) *models.Transaction {
	t := &models.Transaction{
		ID:               r.Id,
		EventID:          r.GetString("event_id"),
		BookingID:        r.GetString("booking_id"),
		UserID:           r.GetString("user_id"),
		PaymentIntentID:  r.GetString("payment_intent_id"),
		Amount:           int64(r.GetInt("amount")),
		PlatformFee:      int64(r.GetInt("platform_fee")),
		OrganizerRevenue: int64(r.GetInt("organizer_revenue")),
		Status:           r.GetString("status"),
		CreatedAt:        r.GetDateTime("created").Time(),
	}
	if completed := r.GetDateTime("completed_at").Time(); !completed.IsZero() {
		t.CompletedAt = &completed
	}
	return t
}

func recordToBooking(r *core.Record) *models.Booking {
	return &models.Booking{
		ID:            r.Id,
		UserID:        r.GetString("user_id"),
		EventID:       r.GetString("event_id"),
		PaymentStatus: r.GetString("payment_status"),
		CreatedAt:     r.GetDateTime("created").Time(),
	}
}

func recordToTicket(r *core.Record) *models.Ticket {
	return &models.Ticket{
		ID:           r.Id,
		BookingID:    r.GetString("booking_id"),
		TicketNumber: r.GetString("ticket_number"),
		QRPayload:    r.GetString("qr_payload"),
		Status:       r.GetString("status"),
		CreatedAt:    r.GetDateTime("created").Time(),
	}
}

func recordToEvent(r *core.Record) *models.Event {
	return &models.Event{
		ID:               r.Id,
		Title:            r.GetString("title"),
		Slug:             r.GetString("slug"),
		OrganizerID:      r.GetString("organizer_id"),
		Date:             r.GetDateTime("date").Time(),
		Venue:            r.GetString("venue"),
		Price:            int64(r.GetInt("price")),
		Currency:         r.GetString("currency"),
		IsFree:           r.GetBool("is_free"),
		Capacity:         r.GetInt("capacity"),
		AvailableTickets: r.GetInt("available_tickets"),
	}
}

func recordToPayout(r *core.Record) *models.Payout {
	p := &models.Payout{
		ID:             r.Id,
		OrganizerID:    r.GetString("organizer_id"),
		Amount:         int64(r.GetInt("amount")),
		Currency:       r.GetString("currency"),
		Status:         r.GetString("status"),
		PaymentMethod:  r.GetString("payment_method"),
		TransactionIDs: r.GetStringSlice("transaction_ids"),
		RequestedAt:    r.GetDateTime("requested_at").Time(),
	}
	if processed := r.GetDateTime("processed_at").Time(); !processed.IsZero() {
		p.ProcessedAt = &processed
	}
	return p
}
