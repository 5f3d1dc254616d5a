package services

import (
	"context"
	"event-marketplace/internal/services/paymongo"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway serves canned provider responses.
type stubGateway struct {
	mu       sync.Mutex
	intents  map[string]*paymongo.Intent
	payments map[string][]paymongo.Payment
	sources  map[string]*paymongo.Source
	fail     bool
	calls    int
}

func (g *stubGateway) Intent(ctx context.Context, intentID string) (*paymongo.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, fmt.Errorf("Intent: %w", status.ErrGatewayUnavailable)
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, &paymongo.APIError{StatusCode: 404, Detail: "No such payment_intent"}
	}
	cp := *intent
	return &cp, nil
}

func (g *stubGateway) PaymentsByIntent(ctx context.Context, intentID string) ([]paymongo.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, fmt.Errorf("PaymentsByIntent: %w", status.ErrGatewayUnavailable)
	}
	return g.payments[intentID], nil
}

func (g *stubGateway) Source(ctx context.Context, sourceID string) (*paymongo.Source, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, fmt.Errorf("Source: %w", status.ErrGatewayUnavailable)
	}
	source, ok := g.sources[sourceID]
	if !ok {
		return nil, &paymongo.APIError{StatusCode: 404, Detail: "No such source"}
	}
	cp := *source
	return &cp, nil
}

func (g *stubGateway) SourcesByIntent(ctx context.Context, intentID string) ([]paymongo.Source, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return nil, fmt.Errorf("SourcesByIntent: %w", status.ErrGatewayUnavailable)
	}
	var out []paymongo.Source
	for _, src := range g.sources {
		if src.PaymentIntentID == intentID {
			out = append(out, *src)
		}
	}
	return out, nil
}

// stubLedger is an in-memory ledger with the same conditional-update
// semantics as the real store.
type stubLedger struct {
	mu            sync.Mutex
	subs          map[string]*models.Subscription
	txs           map[string]*models.Transaction
	bookings      map[string]*models.Booking
	tickets       map[string]*models.Ticket // keyed by booking id
	events        map[string]*models.Event
	plans         map[string]int64
	notifications []models.Notification
	decrements    int
	calls         int
	txErr         error // returned by the next TransactionByIntent, then cleared
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		subs:     map[string]*models.Subscription{},
		txs:      map[string]*models.Transaction{},
		bookings: map[string]*models.Booking{},
		tickets:  map[string]*models.Ticket{},
		events:   map[string]*models.Event{},
		plans:    map[string]int64{},
	}
}

func (l *stubLedger) SubscriptionByIntent(ctx context.Context, intentID string) (*models.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	for _, s := range l.subs {
		if s.PaymentIntentID == intentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (l *stubLedger) SubscriptionByIntentForUser(ctx context.Context, userID, intentID string) (*models.Subscription, error) {
	sub, err := l.SubscriptionByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, status.ErrNotFound
	}
	return sub, nil
}

func (l *stubLedger) ActiveSubscriptionForUser(ctx context.Context, userID, excludeID string) (*models.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.subs {
		if s.UserID == userID && s.ID != excludeID &&
			(s.Status == models.SubscriptionActive || s.Status == models.SubscriptionTrialing) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (l *stubLedger) IncompleteSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	var out []models.Subscription
	for _, s := range l.subs {
		if s.Status == models.SubscriptionIncomplete {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (l *stubLedger) ActivateSubscription(ctx context.Context, subscriptionID, planID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	sub, ok := l.subs[subscriptionID]
	if !ok || sub.Status != models.SubscriptionIncomplete {
		return false, nil
	}
	sub.Status = models.SubscriptionActive
	if planID != "" {
		sub.PlanID = planID
	}
	return true, nil
}

func (l *stubLedger) PlanPrice(ctx context.Context, planID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	price, ok := l.plans[planID]
	if !ok {
		return 0, status.ErrNotFound
	}
	return price, nil
}

func (l *stubLedger) TransactionByIntent(ctx context.Context, intentID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.txErr != nil {
		err := l.txErr
		l.txErr = nil
		return nil, err
	}
	for _, t := range l.txs {
		if t.PaymentIntentID == intentID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, status.ErrNotFound
}

func (l *stubLedger) CompleteTransaction(ctx context.Context, transactionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	tx, ok := l.txs[transactionID]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionCompleted
	return true, nil
}

func (l *stubLedger) BookingByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	b, ok := l.bookings[bookingID]
	if !ok {
		return nil, status.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (l *stubLedger) ConfirmBooking(ctx context.Context, bookingID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	b, ok := l.bookings[bookingID]
	if !ok || b.PaymentStatus != models.BookingPending {
		return false, nil
	}
	b.PaymentStatus = models.BookingConfirmed
	return true, nil
}

func (l *stubLedger) TicketByBooking(ctx context.Context, bookingID string) (*models.Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	t, ok := l.tickets[bookingID]
	if !ok {
		return nil, status.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (l *stubLedger) CreateTicket(ctx context.Context, t *models.Ticket) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if _, exists := l.tickets[t.BookingID]; exists {
		return fmt.Errorf("CreateTicket: UNIQUE constraint failed: tickets.booking_id")
	}
	l.tickets[t.BookingID] = t
	return nil
}

func (l *stubLedger) DecrementAvailableTickets(ctx context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if e, ok := l.events[eventID]; ok && e.AvailableTickets > 0 {
		e.AvailableTickets--
		l.decrements++
	}
	return nil
}

func (l *stubLedger) EventByID(ctx context.Context, eventID string) (*models.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	e, ok := l.events[eventID]
	if !ok {
		return nil, status.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (l *stubLedger) CreateNotification(ctx context.Context, n *models.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.notifications = append(l.notifications, *n)
	return nil
}

func (l *stubLedger) UserEmail(ctx context.Context, userID string) (string, error) {
	return "buyer@example.com", nil
}

func (l *stubLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newTestEngine(gw *stubGateway, led *stubLedger) *ReconcileService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatch := NewDispatcher(led, nil, nil, mail.Address{Address: "noreply@example.com"}, "https://tickets.example.com", logger)
	return NewReconcileService(gw, led, dispatch, nil, logger)
}

func bookingFixture(led *stubLedger) {
	led.events["e1"] = &models.Event{ID: "e1", Title: "Summer Fest", OrganizerID: "org1", Price: 10000, Currency: "PHP", AvailableTickets: 5}
	led.bookings["b1"] = &models.Booking{ID: "b1", UserID: "u1", EventID: "e1", PaymentStatus: models.BookingPending}
	led.txs["t1"] = &models.Transaction{
		ID: "t1", EventID: "e1", BookingID: "b1", UserID: "u1",
		PaymentIntentID: "pi_123", Amount: 10000, PlatformFee: 500, OrganizerRevenue: 9500,
		Status: models.TransactionPending,
	}
}

func paidWebhookBody(eventID, paymentID, intentID string) []byte {
	return fmt.Appendf(nil,
		`{"data":{"id":%q,"attributes":{"type":"payment.paid","data":{"id":%q,"attributes":{"status":"paid","amount":10000,"payment_intent_id":%q}}}}}`,
		eventID, paymentID, intentID)
}

func TestWebhookPaymentPaid(t *testing.T) {
	t.Run("first delivery settles the booking", func(t *testing.T) {
		led := newStubLedger()
		bookingFixture(led)
		engine := newTestEngine(&stubGateway{}, led)

		event, err := paymongo.ParseWebhookEvent(paidWebhookBody("evt_1", "pay_1", "pi_123"))
		require.NoError(t, err)

		require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))

		assert.Equal(t, models.BookingConfirmed, led.bookings["b1"].PaymentStatus)
		assert.Equal(t, models.TransactionCompleted, led.txs["t1"].Status)
		assert.Len(t, led.tickets, 1)
		assert.Equal(t, 4, led.events["e1"].AvailableTickets)
		assert.Len(t, led.notifications, 1)
	})

	t.Run("redelivery changes nothing", func(t *testing.T) {
		led := newStubLedger()
		bookingFixture(led)
		engine := newTestEngine(&stubGateway{}, led)

		first, err := paymongo.ParseWebhookEvent(paidWebhookBody("evt_1", "pay_1", "pi_123"))
		require.NoError(t, err)
		require.NoError(t, engine.HandleWebhookEvent(context.Background(), first))

		// provider retry carries a fresh delivery id for the same payment
		second, err := paymongo.ParseWebhookEvent(paidWebhookBody("evt_2", "pay_1", "pi_123"))
		require.NoError(t, err)
		require.NoError(t, engine.HandleWebhookEvent(context.Background(), second))

		assert.Equal(t, models.BookingConfirmed, led.bookings["b1"].PaymentStatus)
		assert.Len(t, led.tickets, 1)
		assert.Equal(t, 4, led.events["e1"].AvailableTickets)
		assert.Len(t, led.notifications, 1)
	})

	t.Run("unknown intent is dropped without error", func(t *testing.T) {
		led := newStubLedger()
		engine := newTestEngine(&stubGateway{}, led)

		event, err := paymongo.ParseWebhookEvent(paidWebhookBody("evt_1", "pay_1", "pi_nobody"))
		require.NoError(t, err)

		assert.NoError(t, engine.HandleWebhookEvent(context.Background(), event))
		assert.Empty(t, led.tickets)
	})

	t.Run("unrecognized event type is ignored", func(t *testing.T) {
		led := newStubLedger()
		bookingFixture(led)
		engine := newTestEngine(&stubGateway{}, led)

		event, err := paymongo.ParseWebhookEvent([]byte(`{"data":{"id":"evt_9","attributes":{"type":"link.payment.paid","data":{"id":"x"}}}}`))
		require.NoError(t, err)

		require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))
		assert.Equal(t, models.BookingPending, led.bookings["b1"].PaymentStatus)
	})
}

func TestWebhookDedupeFastPath(t *testing.T) {
	led := newStubLedger()
	bookingFixture(led)
	gw := &stubGateway{}

	client, mock := redismock.NewClientMock()
	mock.ExpectSetNX("webhook:event:evt_1", 1, 24*time.Hour).SetVal(false)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatch := NewDispatcher(led, nil, nil, mail.Address{}, "https://tickets.example.com", logger)
	engine := NewReconcileService(gw, led, dispatch, client, logger)

	event, err := paymongo.ParseWebhookEvent(paidWebhookBody("evt_1", "pay_1", "pi_123"))
	require.NoError(t, err)

	require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))

	assert.Zero(t, led.callCount(), "duplicate delivery must not touch the ledger")
	assert.Zero(t, gw.calls, "duplicate delivery must not touch the gateway")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRetryAfterFailure(t *testing.T) {
	led := newStubLedger()
	bookingFixture(led)
	led.txErr = fmt.Errorf("TransactionByIntent: database is locked")

	// The failed attempt must release its dedupe claim so the provider's
	// redelivery of the same event id gets processed.
	client, mock := redismock.NewClientMock()
	mock.ExpectSetNX("webhook:event:evt_1", 1, 24*time.Hour).SetVal(true)
	mock.ExpectDel("webhook:event:evt_1").SetVal(1)
	mock.ExpectSetNX("webhook:event:evt_1", 1, 24*time.Hour).SetVal(true)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatch := NewDispatcher(led, nil, nil, mail.Address{}, "https://tickets.example.com", logger)
	engine := NewReconcileService(&stubGateway{}, led, dispatch, client, logger)

	event, err := paymongo.ParseWebhookEvent(paidWebhookBody("evt_1", "pay_1", "pi_123"))
	require.NoError(t, err)

	require.Error(t, engine.HandleWebhookEvent(context.Background(), event),
		"transient store failure must surface so the provider redelivers")
	assert.Equal(t, models.BookingPending, led.bookings["b1"].PaymentStatus)

	require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))

	assert.Equal(t, models.BookingConfirmed, led.bookings["b1"].PaymentStatus,
		"retry of a failed delivery must settle the booking")
	assert.Equal(t, models.TransactionCompleted, led.txs["t1"].Status)
	assert.Len(t, led.tickets, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConcurrentSettlement(t *testing.T) {
	led := newStubLedger()
	bookingFixture(led)
	engine := newTestEngine(&stubGateway{}, led)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event, err := paymongo.ParseWebhookEvent(paidWebhookBody(fmt.Sprintf("evt_%d", i), "pay_1", "pi_123"))
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = engine.HandleWebhookEvent(context.Background(), event)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "delivery %d", i)
	}
	assert.Len(t, led.tickets, 1)
	assert.Equal(t, 1, led.decrements, "capacity must drop exactly once")
	assert.Equal(t, 4, led.events["e1"].AvailableTickets)
	assert.Len(t, led.notifications, 1)
}

func TestPollStatus(t *testing.T) {
	subFixture := func() *stubLedger {
		led := newStubLedger()
		led.subs["sub_1"] = &models.Subscription{
			ID: "sub_1", UserID: "u1", PlanID: "plan_basic",
			Status: models.SubscriptionIncomplete, PaymentIntentID: "pi_456",
		}
		led.plans["plan_basic"] = 49900
		led.plans["plan_pro"] = 99900
		return led
	}

	t.Run("optimistic redirect activates with purchased plan", func(t *testing.T) {
		led := subFixture()
		gw := &stubGateway{intents: map[string]*paymongo.Intent{
			"pi_456": {
				ID:       "pi_456",
				Status:   "awaiting_payment_method",
				Amount:   99900,
				Metadata: map[string]string{"planId": "plan_pro"},
			},
		}}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_456", "success", "")
		require.NoError(t, err)

		assert.Equal(t, "succeeded", result.Status)
		assert.Equal(t, models.SubscriptionActive, result.SubscriptionStatus)
		assert.Equal(t, models.SubscriptionActive, led.subs["sub_1"].Status)
		assert.Equal(t, "plan_pro", led.subs["sub_1"].PlanID, "plan must follow the intent metadata")
	})

	t.Run("no redirect marker stays pending", func(t *testing.T) {
		led := subFixture()
		gw := &stubGateway{intents: map[string]*paymongo.Intent{
			"pi_456": {ID: "pi_456", Status: "awaiting_payment_method"},
		}}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_456", "", "")
		require.NoError(t, err)

		assert.Equal(t, "awaiting_payment_method", result.Status)
		assert.Equal(t, models.SubscriptionIncomplete, led.subs["sub_1"].Status)
	})

	t.Run("redirect with recorded payment error is not trusted", func(t *testing.T) {
		led := subFixture()
		gw := &stubGateway{intents: map[string]*paymongo.Intent{
			"pi_456": {ID: "pi_456", Status: "awaiting_payment_method", LastPaymentError: "card declined"},
		}}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_456", "success", "")
		require.NoError(t, err)

		assert.Equal(t, "awaiting_payment_method", result.Status)
		assert.Equal(t, models.SubscriptionIncomplete, led.subs["sub_1"].Status)
	})

	t.Run("cancelled intent reports failure and keeps the record retryable", func(t *testing.T) {
		led := subFixture()
		gw := &stubGateway{intents: map[string]*paymongo.Intent{
			"pi_456": {ID: "pi_456", Status: "cancelled"},
		}}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_456", "success", "")
		require.NoError(t, err)

		assert.Equal(t, "cancelled", result.Status)
		assert.Equal(t, models.SubscriptionIncomplete, led.subs["sub_1"].Status)
	})

	t.Run("gateway failure falls back to persisted state", func(t *testing.T) {
		led := subFixture()
		gw := &stubGateway{fail: true}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_456", "success", "")
		require.NoError(t, err)

		assert.Equal(t, "pending", result.Status, "a dead gateway must never fabricate success")
		assert.Equal(t, models.SubscriptionIncomplete, result.SubscriptionStatus)
		assert.Equal(t, models.SubscriptionIncomplete, led.subs["sub_1"].Status)
	})

	t.Run("paid source settles without intent status", func(t *testing.T) {
		led := newStubLedger()
		bookingFixture(led)
		gw := &stubGateway{
			intents: map[string]*paymongo.Intent{
				"pi_123": {ID: "pi_123", Status: "awaiting_next_action"},
			},
			sources: map[string]*paymongo.Source{
				"src_1": {ID: "src_1", Status: "paid", Amount: 10000},
			},
		}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_123", "", "src_1")
		require.NoError(t, err)

		assert.Equal(t, "succeeded", result.Status)
		assert.Equal(t, models.BookingConfirmed, led.bookings["b1"].PaymentStatus)
	})

	t.Run("paid source found by listing when the redirect lost the id", func(t *testing.T) {
		led := newStubLedger()
		bookingFixture(led)
		gw := &stubGateway{
			intents: map[string]*paymongo.Intent{
				"pi_123": {ID: "pi_123", Status: "awaiting_next_action"},
			},
			sources: map[string]*paymongo.Source{
				"src_2": {ID: "src_2", PaymentIntentID: "pi_123", Status: "paid", Amount: 10000},
			},
		}
		engine := newTestEngine(gw, led)

		result, err := engine.PollStatus(context.Background(), "u1", "pi_123", "", "")
		require.NoError(t, err)

		assert.Equal(t, "succeeded", result.Status)
		assert.Equal(t, models.BookingConfirmed, led.bookings["b1"].PaymentStatus)
	})

	t.Run("foreign intent is not found", func(t *testing.T) {
		led := subFixture()
		engine := newTestEngine(&stubGateway{}, led)

		_, err := engine.PollStatus(context.Background(), "u2", "pi_456", "", "")
		assert.ErrorIs(t, err, status.ErrNotFound)
	})
}

func TestSourceChargeableAmountMatch(t *testing.T) {
	t.Run("single amount match activates", func(t *testing.T) {
		led := newStubLedger()
		led.subs["sub_1"] = &models.Subscription{
			ID: "sub_1", UserID: "u1", PlanID: "plan_pro",
			Status: models.SubscriptionIncomplete,
		}
		led.plans["plan_pro"] = 99900
		engine := newTestEngine(&stubGateway{}, led)

		body := `{"data":{"id":"evt_5","attributes":{"type":"source.chargeable","data":{"id":"src_9","attributes":{"status":"chargeable","amount":99900}}}}}`
		event, err := paymongo.ParseWebhookEvent([]byte(body))
		require.NoError(t, err)

		require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))
		assert.Equal(t, models.SubscriptionActive, led.subs["sub_1"].Status)
	})

	t.Run("source metadata plan wins over the stored plan", func(t *testing.T) {
		led := newStubLedger()
		led.subs["sub_1"] = &models.Subscription{
			ID: "sub_1", UserID: "u1", PlanID: "plan_pro",
			Status: models.SubscriptionIncomplete,
		}
		led.plans["plan_pro"] = 99900
		engine := newTestEngine(&stubGateway{}, led)

		body := `{"data":{"id":"evt_7","attributes":{"type":"source.chargeable","data":{"id":"src_9","attributes":{"status":"chargeable","amount":99900,"metadata":{"planId":"plan_max"}}}}}}`
		event, err := paymongo.ParseWebhookEvent([]byte(body))
		require.NoError(t, err)

		require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))
		assert.Equal(t, models.SubscriptionActive, led.subs["sub_1"].Status)
		assert.Equal(t, "plan_max", led.subs["sub_1"].PlanID, "plan must follow the source metadata")
	})

	t.Run("ambiguous match settles nothing", func(t *testing.T) {
		led := newStubLedger()
		led.subs["sub_1"] = &models.Subscription{ID: "sub_1", UserID: "u1", PlanID: "plan_pro", Status: models.SubscriptionIncomplete}
		led.subs["sub_2"] = &models.Subscription{ID: "sub_2", UserID: "u2", PlanID: "plan_pro", Status: models.SubscriptionIncomplete}
		led.plans["plan_pro"] = 99900
		engine := newTestEngine(&stubGateway{}, led)

		body := `{"data":{"id":"evt_6","attributes":{"type":"source.chargeable","data":{"id":"src_9","attributes":{"status":"chargeable","amount":99900}}}}}`
		event, err := paymongo.ParseWebhookEvent([]byte(body))
		require.NoError(t, err)

		require.NoError(t, engine.HandleWebhookEvent(context.Background(), event))
		assert.Equal(t, models.SubscriptionIncomplete, led.subs["sub_1"].Status)
		assert.Equal(t, models.SubscriptionIncomplete, led.subs["sub_2"].Status)
	})
}
