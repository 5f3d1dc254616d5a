package services

import (
	"context"
	"errors"
	"event-marketplace/internal/services/paymongo"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gateway is the slice of the payment provider client the engine
// consults while evaluating settlement evidence.
type Gateway interface {
	Intent(ctx context.Context, intentID string) (*paymongo.Intent, error)
	PaymentsByIntent(ctx context.Context, intentID string) ([]paymongo.Payment, error)
	Source(ctx context.Context, sourceID string) (*paymongo.Source, error)
	SourcesByIntent(ctx context.Context, intentID string) ([]paymongo.Source, error)
}

// Ledger is the persisted-state surface the engine and dispatcher work
// against. *ledger.Store implements it.
type Ledger interface {
	SubscriptionByIntent(ctx context.Context, intentID string) (*models.Subscription, error)
	SubscriptionByIntentForUser(ctx context.Context, userID, intentID string) (*models.Subscription, error)
	ActiveSubscriptionForUser(ctx context.Context, userID, excludeID string) (*models.Subscription, error)
	IncompleteSubscriptions(ctx context.Context) ([]models.Subscription, error)
	ActivateSubscription(ctx context.Context, subscriptionID, planID string) (bool, error)
	PlanPrice(ctx context.Context, planID string) (int64, error)

	TransactionByIntent(ctx context.Context, intentID string) (*models.Transaction, error)
	CompleteTransaction(ctx context.Context, transactionID string) (bool, error)

	BookingByID(ctx context.Context, bookingID string) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID string) (bool, error)

	TicketByBooking(ctx context.Context, bookingID string) (*models.Ticket, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error
	DecrementAvailableTickets(ctx context.Context, eventID string) error
	EventByID(ctx context.Context, eventID string) (*models.Event, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	UserEmail(ctx context.Context, userID string) (string, error)
}

const (
	webhookDedupeTTL = 24 * time.Hour
	statusCacheTTL   = time.Hour
)

// ReconcileService answers "has payment X succeeded, and have we already
// applied its effects?" and applies the effects at most once. It holds
// no per-intent state: the ledger's conditional updates are what make
// concurrent invocations for the same intent safe.
type ReconcileService struct {
	gateway  Gateway
	ledger   Ledger
	dispatch *Dispatcher
	redis    *redis.Client
	logger   *slog.Logger
}

func NewReconcileService(gateway Gateway, l Ledger, dispatch *Dispatcher, redisClient *redis.Client, logger *slog.Logger) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{
		gateway:  gateway,
		ledger:   l,
		dispatch: dispatch,
		redis:    redisClient,
		logger:   logger,
	}
}

// HandleWebhookEvent routes one verified webhook delivery. Unrecognized
// event types are logged and dropped; errors bubble up so the handler
// can answer non-2xx and the provider redelivers.
func (s *ReconcileService) HandleWebhookEvent(ctx context.Context, event *paymongo.WebhookEvent) error {
	if !s.claimWebhookEvent(ctx, event.ID) {
		s.logger.Info("webhook event already processed", "eventId", event.ID, "type", event.Type)
		monitoring.TrackWebhookEvent(event.Type, "duplicate")
		return nil
	}

	var err error
	switch event.Type {
	case "payment.paid", "checkout_session.payment.paid":
		err = s.handlePaymentPaid(ctx, event)
	case "source.chargeable":
		err = s.handleSourceChargeable(ctx, event)
	case "payment.failed":
		payment := event.ResourcePayment()
		s.logger.Info("payment failed, purchase left retryable",
			"eventId", event.ID, "paymentId", payment.ID, "intentId", event.IntentID())
	default:
		s.logger.Info("ignoring unrecognized webhook event", "eventId", event.ID, "type", event.Type)
		monitoring.TrackWebhookEvent(event.Type, "ignored")
		return nil
	}

	if err != nil {
		// The handler answers non-2xx on this error and the provider
		// redelivers under the same event id, so the claim must not
		// outlive the failed attempt.
		s.releaseWebhookEvent(ctx, event.ID)
		monitoring.TrackWebhookEvent(event.Type, "error")
		return err
	}
	monitoring.TrackWebhookEvent(event.Type, "processed")
	return nil
}

func (s *ReconcileService) handlePaymentPaid(ctx context.Context, event *paymongo.WebhookEvent) error {
	intentID := event.IntentID()
	if intentID == "" {
		s.logger.Warn("paid event carries no intent reference", "eventId", event.ID, "type", event.Type)
		return nil
	}

	payment := event.ResourcePayment()
	return s.settleIntent(ctx, intentID, payment.Metadata, status.TriggerWebhook)
}

// handleSourceChargeable settles through the intent reference when the
// source carries one. Older source flows don't, so as a fallback the
// source amount is matched against the plan price of a single incomplete
// subscription; an ambiguous match settles nothing.
func (s *ReconcileService) handleSourceChargeable(ctx context.Context, event *paymongo.WebhookEvent) error {
	source := event.ResourceSource()

	if source.PaymentIntentID != "" {
		return s.settleIntent(ctx, source.PaymentIntentID, source.Metadata, status.TriggerWebhook)
	}

	subs, err := s.ledger.IncompleteSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("handleSourceChargeable: %w", err)
	}

	var match *models.Subscription
	for i := range subs {
		price, err := s.ledger.PlanPrice(ctx, subs[i].PlanID)
		if err != nil || price != source.Amount {
			continue
		}
		if match != nil {
			s.logger.Warn("ambiguous source amount match, skipping",
				"sourceId", source.ID, "amount", source.Amount)
			return nil
		}
		match = &subs[i]
	}
	if match == nil {
		s.logger.Info("no subscription matches source amount",
			"sourceId", source.ID, "amount", source.Amount)
		return nil
	}

	return s.activateSubscription(ctx, match, source.Metadata["planId"], status.TriggerWebhook)
}

// PollResult is the status-poll reply shape.
type PollResult struct {
	Status             string `json:"status"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
}

// PollStatus resolves the settlement state for an authenticated caller
// after a checkout redirect. Gateway failures fall back to whatever the
// ledger already says: a dead provider can delay a confirmation but
// never fabricate one.
//
// The redirect marker feeds the OptimisticRedirectConfirmation policy:
// arriving back from hosted checkout with redirect=success, no recorded
// payment error, and no explicit cancellation counts as success even
// while the intent status lags. Confirmation latency beats strictness
// here on purpose; the ledger-side guards bound what a false positive
// can do.
func (s *ReconcileService) PollStatus(ctx context.Context, userID, intentID, redirect, sourceID string) (*PollResult, error) {
	sub, err := s.ledger.SubscriptionByIntentForUser(ctx, userID, intentID)
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("PollStatus: %w", err)
	}

	var tx *models.Transaction
	if sub == nil {
		tx, err = s.ledger.TransactionByIntent(ctx, intentID)
		if err != nil && !errors.Is(err, status.ErrNotFound) {
			return nil, fmt.Errorf("PollStatus: %w", err)
		}
		if tx != nil && tx.UserID != userID {
			tx = nil
		}
	}
	if sub == nil && tx == nil {
		return nil, fmt.Errorf("PollStatus: intent %s: %w", intentID, status.ErrNotFound)
	}

	// Settled state is terminal, so a cache hit can skip the gateway.
	if s.cachedSettled(ctx, intentID) {
		return s.localResult(sub, tx, "succeeded"), nil
	}

	intent, gerr := s.gateway.Intent(ctx, intentID)
	if gerr != nil {
		s.logger.Error("gateway unavailable during poll, reporting persisted state",
			"intentId", intentID, "error", gerr)
		monitoring.TrackSettlement(status.TriggerClientPoll, "gateway_fallback")
		return s.localResult(sub, tx, ""), nil
	}

	settled, failed := s.evaluateEvidence(ctx, intent, redirect, sourceID)

	if !settled {
		if failed {
			monitoring.TrackSettlement(status.TriggerClientPoll, "failed")
		}
		return s.localResult(sub, tx, intent.Status), nil
	}

	if err := s.settleIntent(ctx, intentID, intent.Metadata, status.TriggerClientPoll); err != nil {
		return nil, fmt.Errorf("PollStatus: %w", err)
	}
	if sub != nil {
		sub.Status = models.SubscriptionActive
	}
	return s.localResult(sub, tx, "succeeded"), nil
}

// evaluateEvidence gathers success/failure evidence for an intent per
// the transition rules: the intent's own status, any paid payment, a
// paid source, or the optimistic redirect marker.
func (s *ReconcileService) evaluateEvidence(ctx context.Context, intent *paymongo.Intent, redirect, sourceID string) (settled, failed bool) {
	if intent.Status == "succeeded" {
		return true, false
	}

	for _, p := range intent.Payments {
		switch p.Status {
		case "paid", "succeeded":
			return true, false
		}
	}
	if len(intent.Payments) == 0 {
		payments, err := s.gateway.PaymentsByIntent(ctx, intent.ID)
		if err != nil {
			s.logger.Warn("payment listing unavailable", "intentId", intent.ID, "error", err)
		}
		for _, p := range payments {
			switch p.Status {
			case "paid", "succeeded":
				return true, false
			}
		}
	}

	if sourceID != "" {
		source, err := s.gateway.Source(ctx, sourceID)
		if err != nil {
			s.logger.Warn("source lookup unavailable", "sourceId", sourceID, "error", err)
		} else if source.Status == "paid" {
			return true, false
		}
	} else {
		// E-wallet flows that lost the source id on redirect still settle
		// off a paid source attached to the intent.
		sources, err := s.gateway.SourcesByIntent(ctx, intent.ID)
		if err != nil {
			s.logger.Warn("source listing unavailable", "intentId", intent.ID, "error", err)
		}
		for _, src := range sources {
			if src.Status == "paid" {
				return true, false
			}
		}
	}

	explicitFailure := intent.Status == "cancelled" || intent.Status == "canceled"

	if redirect == "success" && !explicitFailure && intent.LastPaymentError == "" {
		return true, false
	}

	return false, explicitFailure
}

// localResult maps persisted records into a poll reply. statusOverride,
// when non-empty, is the gateway-derived status to report instead.
func (s *ReconcileService) localResult(sub *models.Subscription, tx *models.Transaction, statusOverride string) *PollResult {
	result := &PollResult{Status: statusOverride}

	if sub != nil {
		result.SubscriptionStatus = sub.Status
		if result.Status == "" {
			if sub.Status == models.SubscriptionActive || sub.Status == models.SubscriptionTrialing {
				result.Status = "succeeded"
			} else {
				result.Status = "pending"
			}
		}
		return result
	}

	if result.Status == "" {
		switch tx.Status {
		case models.TransactionCompleted:
			result.Status = "succeeded"
		case models.TransactionFailed:
			result.Status = "failed"
		default:
			result.Status = "pending"
		}
	}
	return result
}

// settleIntent applies success to whatever purchase context the intent
// correlates: a subscription upgrade, a booking, or both never (an
// intent is minted for exactly one context). Unknown intents are logged
// and dropped rather than failed, a webhook for somebody else's intent
// must not trigger provider redelivery forever.
func (s *ReconcileService) settleIntent(ctx context.Context, intentID string, metadata map[string]string, trigger status.Trigger) error {
	sub, err := s.ledger.SubscriptionByIntent(ctx, intentID)
	if err == nil {
		return s.activateSubscription(ctx, sub, metadata["planId"], trigger)
	}
	if !errors.Is(err, status.ErrNotFound) {
		return fmt.Errorf("settleIntent: %w", err)
	}

	tx, err := s.ledger.TransactionByIntent(ctx, intentID)
	if err == nil {
		return s.settleBooking(ctx, tx, trigger)
	}
	if !errors.Is(err, status.ErrNotFound) {
		return fmt.Errorf("settleIntent: %w", err)
	}

	s.logger.Warn("no local record correlates intent", "intentId", intentID, "trigger", trigger)
	return nil
}

// activateSubscription flips the subscription to active exactly once.
// planID comes from the intent metadata and wins over the stored plan:
// a plan switch mid-checkout must resolve to what was actually paid for.
func (s *ReconcileService) activateSubscription(ctx context.Context, sub *models.Subscription, planID string, trigger status.Trigger) error {
	if sub.Status == models.SubscriptionActive || sub.Status == models.SubscriptionTrialing {
		monitoring.TrackSettlement(trigger, "already_settled")
		return nil
	}

	won, err := s.ledger.ActivateSubscription(ctx, sub.ID, planID)
	if err != nil {
		return fmt.Errorf("activateSubscription: %w", err)
	}
	if !won {
		monitoring.TrackSettlement(trigger, "already_settled")
		return nil
	}

	if planID != "" {
		sub.PlanID = planID
	}
	sub.Status = models.SubscriptionActive

	// One active subscription per user is a read-time rule, not a storage
	// constraint. Surface violations instead of silently stacking them.
	if other, err := s.ledger.ActiveSubscriptionForUser(ctx, sub.UserID, sub.ID); err == nil {
		s.logger.Warn("user now has more than one active subscription",
			"userId", sub.UserID, "subscriptionId", sub.ID, "otherId", other.ID)
	}

	if err := s.dispatch.SubscriptionActivated(ctx, sub); err != nil {
		return fmt.Errorf("activateSubscription: %w", err)
	}

	s.cacheSettled(ctx, sub.PaymentIntentID)
	monitoring.TrackSettlement(trigger, "settled")
	s.logger.Info("subscription activated",
		"subscriptionId", sub.ID, "planId", sub.PlanID, "trigger", trigger)
	return nil
}

// settleBooking is the booking-path settlement: confirm, complete the
// transaction, then dispatch ticket issuance and the rest. The read of
// the current booking status plus the conditional confirm is what makes
// webhook retries and webhook/poll races converge on one ticket.
func (s *ReconcileService) settleBooking(ctx context.Context, tx *models.Transaction, trigger status.Trigger) error {
	booking, err := s.ledger.BookingByID(ctx, tx.BookingID)
	if err != nil {
		return fmt.Errorf("settleBooking: %w", err)
	}

	if booking.PaymentStatus == models.BookingConfirmed {
		monitoring.TrackSettlement(trigger, "already_settled")
		return nil
	}

	won, err := s.ledger.ConfirmBooking(ctx, booking.ID)
	if err != nil {
		return fmt.Errorf("settleBooking: %w", err)
	}
	if !won {
		// Another delivery flipped it between our read and write.
		monitoring.TrackSettlement(trigger, "already_settled")
		return nil
	}
	booking.PaymentStatus = models.BookingConfirmed

	if _, err := s.ledger.CompleteTransaction(ctx, tx.ID); err != nil {
		return fmt.Errorf("settleBooking: %w", err)
	}

	if err := s.dispatch.BookingConfirmed(ctx, booking, tx); err != nil {
		return fmt.Errorf("settleBooking: %w", err)
	}

	s.cacheSettled(ctx, tx.PaymentIntentID)
	monitoring.TrackSettlement(trigger, "settled")
	s.logger.Info("booking settled",
		"bookingId", booking.ID, "transactionId", tx.ID, "trigger", trigger)
	return nil
}

// IntentDetail is the authenticated view of a payment intent and the
// purchase context it correlates.
type IntentDetail struct {
	ID           string               `json:"id"`
	Status       string               `json:"status"`
	Amount       int64                `json:"amount"`
	Currency     string               `json:"currency"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Intent returns the gateway's view of an intent the caller owns,
// falling back to the persisted status when the gateway is down.
func (s *ReconcileService) Intent(ctx context.Context, userID, intentID string) (*IntentDetail, error) {
	sub, err := s.ledger.SubscriptionByIntentForUser(ctx, userID, intentID)
	if err != nil && !errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("Intent: %w", err)
	}

	var tx *models.Transaction
	if sub == nil {
		tx, err = s.ledger.TransactionByIntent(ctx, intentID)
		if err != nil && !errors.Is(err, status.ErrNotFound) {
			return nil, fmt.Errorf("Intent: %w", err)
		}
		if tx == nil || tx.UserID != userID {
			return nil, fmt.Errorf("Intent: %s: %w", intentID, status.ErrNotFound)
		}
	}

	detail := &IntentDetail{ID: intentID, Subscription: sub}

	intent, gerr := s.gateway.Intent(ctx, intentID)
	if gerr != nil {
		s.logger.Error("gateway unavailable during intent fetch, reporting persisted state",
			"intentId", intentID, "error", gerr)
		detail.Status = s.localResult(sub, tx, "").Status
		if tx != nil {
			detail.Amount = tx.Amount
		}
		return detail, nil
	}

	detail.Status = intent.Status
	detail.Amount = intent.Amount
	detail.Currency = intent.Currency
	detail.Metadata = intent.Metadata
	return detail, nil
}

// claimWebhookEvent claims the event id in redis so duplicate deliveries
// short-circuit. Losing redis degrades to the ledger guard further down,
// never to double effects.
func (s *ReconcileService) claimWebhookEvent(ctx context.Context, eventID string) bool {
	if s.redis == nil || eventID == "" {
		return true
	}

	key := fmt.Sprintf("webhook:event:%s", eventID)
	set, err := s.redis.SetNX(ctx, key, 1, webhookDedupeTTL).Result()
	if err != nil {
		s.logger.Warn("webhook dedupe unavailable", "eventId", eventID, "error", err)
		return true
	}
	return set
}

// releaseWebhookEvent drops a claim after a failed processing attempt so
// the provider's redelivery gets a fresh one. Best-effort: a stuck claim
// still ages out via the TTL.
func (s *ReconcileService) releaseWebhookEvent(ctx context.Context, eventID string) {
	if s.redis == nil || eventID == "" {
		return
	}

	key := fmt.Sprintf("webhook:event:%s", eventID)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("webhook dedupe release failed", "eventId", eventID, "error", err)
	}
}

func (s *ReconcileService) cacheSettled(ctx context.Context, intentID string) {
	if s.redis == nil || intentID == "" {
		return
	}

	key := fmt.Sprintf("payment:intent:%s:status", intentID)
	if err := s.redis.Set(ctx, key, "succeeded", statusCacheTTL).Err(); err != nil {
		s.logger.Warn("status cache write failed", "intentId", intentID, "error", err)
	}
}

func (s *ReconcileService) cachedSettled(ctx context.Context, intentID string) bool {
	if s.redis == nil {
		return false
	}

	val, err := s.redis.Get(ctx, fmt.Sprintf("payment:intent:%s:status", intentID)).Result()
	if err != nil {
		return false
	}
	return val == "succeeded"
}
