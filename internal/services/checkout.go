package services

import (
	"context"
	"event-marketplace/internal/ledger"
	"event-marketplace/internal/services/paymongo"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shopspring/decimal"
)

// CheckoutService handles the purchase-creation half of the payment
// lifecycle: intent plus pending ledger records, hosted checkout
// sessions, and refunds. Settlement of what it creates is the
// reconciliation engine's job.
type CheckoutService struct {
	gateway    *paymongo.Client
	ledger     *ledger.Store
	baseURL    string
	feePercent float64
	logger     *slog.Logger
}

func NewCheckoutService(gateway *paymongo.Client, l *ledger.Store, baseURL string, feePercent float64, logger *slog.Logger) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		gateway:    gateway,
		ledger:     l,
		baseURL:    baseURL,
		feePercent: feePercent,
		logger:     logger,
	}
}

type EventIntentRequest struct {
	EventID         string  `json:"eventId"`
	PromoCode       string  `json:"promoCode"`
	DiscountPercent float64 `json:"discountPercent"`
}

type EventIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientKey       string `json:"clientKey"`
	Amount          int64  `json:"amount"`
	BookingID       string `json:"bookingId"`
	TransactionID   string `json:"transactionId"`
}

// CreateEventIntent mints a payment intent for a paid event and lays
// down the pending booking and transaction records the settlement path
// will later flip. The purchase context rides in the intent metadata,
// which the provider echoes back on every fetch.
func (c *CheckoutService) CreateEventIntent(ctx context.Context, userID string, req *EventIntentRequest) (*EventIntentResponse, error) {
	event, err := c.ledger.EventByID(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("CreateEventIntent: %w", err)
	}
	if event.IsFree || event.Price <= 0 {
		return nil, fmt.Errorf("CreateEventIntent: event %s is free: %w", event.ID, status.ErrInvalidInput)
	}

	amount := discountedAmount(event.Price, req.DiscountPercent)
	if amount <= 0 {
		return nil, fmt.Errorf("CreateEventIntent: discounted amount is zero: %w", status.ErrInvalidInput)
	}

	bookingID, err := c.ledger.CreateBooking(ctx, &models.Booking{UserID: userID, EventID: event.ID})
	if err != nil {
		return nil, fmt.Errorf("CreateEventIntent: %w", err)
	}

	intent, err := c.gateway.CreateIntent(ctx, &paymongo.CreateIntentRequest{
		Amount:   amount,
		Currency: eventCurrency(event),
		Metadata: map[string]string{
			"eventId":   event.ID,
			"userId":    userID,
			"bookingId": bookingID,
			"promoCode": req.PromoCode,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("CreateEventIntent: %w", err)
	}

	split := SplitRevenue(amount, c.feePercent)
	txID, err := c.ledger.CreateTransaction(ctx, &models.Transaction{
		EventID:          event.ID,
		BookingID:        bookingID,
		UserID:           userID,
		PaymentIntentID:  intent.ID,
		Amount:           amount,
		PlatformFee:      split.PlatformFee,
		OrganizerRevenue: split.OrganizerRevenue,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateEventIntent: %w", err)
	}

	c.logger.Info("payment intent created",
		"intentId", intent.ID, "bookingId", bookingID, "eventId", event.ID, "amount", amount)

	return &EventIntentResponse{
		PaymentIntentID: intent.ID,
		ClientKey:       intent.ClientKey,
		Amount:          amount,
		BookingID:       bookingID,
		TransactionID:   txID,
	}, nil
}

type CheckoutRequest struct {
	PaymentIntentID   string `json:"paymentIntentId"`
	PaymentMethodType string `json:"paymentMethodType"`
}

type CheckoutResponse struct {
	CheckoutURL      string `json:"checkoutUrl"`
	RequiresRedirect bool   `json:"requiresRedirect"`
}

// CreateCheckout opens a hosted checkout session for an intent the
// caller owns. The return URLs carry the intent reference and the
// redirect marker the status poll evaluates after the purchaser comes
// back.
func (c *CheckoutService) CreateCheckout(ctx context.Context, userID string, req *CheckoutRequest) (*CheckoutResponse, error) {
	if req.PaymentIntentID == "" {
		return nil, fmt.Errorf("CreateCheckout: paymentIntentId is required: %w", status.ErrInvalidInput)
	}

	tx, err := c.ledger.TransactionByIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}
	if tx.UserID != userID {
		return nil, fmt.Errorf("CreateCheckout: intent %s: %w", req.PaymentIntentID, status.ErrNotFound)
	}

	intent, err := c.gateway.Intent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}

	event, err := c.ledger.EventByID(ctx, tx.EventID)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}

	var methods []string
	if req.PaymentMethodType != "" {
		methods = []string{req.PaymentMethodType}
	}

	returnURL := c.baseURL + "/payments/return?intent=" + url.QueryEscape(req.PaymentIntentID)
	session, err := c.gateway.CreateCheckoutSession(ctx,
		[]paymongo.LineItem{{
			Name:     event.Title,
			Quantity: 1,
			Amount:   tx.Amount,
			Currency: eventCurrency(event),
		}},
		methods,
		returnURL+"&redirect=success",
		returnURL+"&redirect=cancel",
		intent.Metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}

	return &CheckoutResponse{CheckoutURL: session.CheckoutURL, RequiresRedirect: true}, nil
}

type RefundRequest struct {
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
	TransactionID string `json:"transactionId"`
}

// Refund passes a refund through to the gateway and, when the caller
// names the transaction, marks it refunded locally.
func (c *CheckoutService) Refund(ctx context.Context, paymentID string, req *RefundRequest) (string, error) {
	refundID, err := c.gateway.CreateRefund(ctx, paymentID, req.Amount, req.Reason)
	if err != nil {
		return "", fmt.Errorf("Refund: %w", err)
	}

	if req.TransactionID != "" {
		if err := c.ledger.MarkTransactionRefunded(ctx, req.TransactionID); err != nil {
			c.logger.Error("refund issued but transaction not marked",
				"refundId", refundID, "transactionId", req.TransactionID, "error", err)
		}
	}

	c.logger.Info("refund created", "refundId", refundID, "paymentId", paymentID, "amount", req.Amount)
	return refundID, nil
}

// discountedAmount applies a promo percentage to a centavo price,
// rounding half-up like the fee split does.
func discountedAmount(price int64, discountPercent float64) int64 {
	if discountPercent <= 0 {
		return price
	}
	if discountPercent >= 100 {
		return 0
	}
	return decimal.NewFromInt(price).
		Mul(decimal.NewFromFloat(100 - discountPercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func eventCurrency(event *models.Event) string {
	if event.Currency != "" {
		return event.Currency
	}
	return "PHP"
}
