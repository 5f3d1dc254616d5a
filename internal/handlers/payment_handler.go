package handlers

import (
	"event-marketplace/internal/services"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	reconcile *services.ReconcileService
	checkout  *services.CheckoutService
	logger    *slog.Logger
}

func NewPaymentHandler(reconcile *services.ReconcileService, checkout *services.CheckoutService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{reconcile: reconcile, checkout: checkout, logger: logger}
}

// GetIntent - payment intent detail for the authenticated owner
func (h *PaymentHandler) GetIntent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	intentID := e.Request.PathValue("id")
	detail, err := h.reconcile.Intent(e.Request.Context(), e.Auth.Id, intentID)
	if err != nil {
		h.logger.Error("intent fetch failed", "intentId", intentID, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, detail)
}

// GetIntentStatus - settlement poll after a checkout redirect
func (h *PaymentHandler) GetIntentStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	intentID := e.Request.PathValue("id")
	query := e.Request.URL.Query()

	result, err := h.reconcile.PollStatus(
		e.Request.Context(),
		e.Auth.Id,
		intentID,
		query.Get("redirect"),
		query.Get("sourceId"),
	)
	if err != nil {
		h.logger.Error("status poll failed", "intentId", intentID, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// CreateIntent - mint an intent plus pending booking for a paid event
func (h *PaymentHandler) CreateIntent(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req services.EventIntentRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("eventId is required", nil)
	}

	resp, err := h.checkout.CreateEventIntent(e.Request.Context(), e.Auth.Id, &req)
	if err != nil {
		h.logger.Error("intent creation failed", "eventId", req.EventID, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, resp)
}

// CreateCheckout - hosted checkout session for an existing intent
func (h *PaymentHandler) CreateCheckout(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req services.CheckoutRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}

	resp, err := h.checkout.CreateCheckout(e.Request.Context(), e.Auth.Id, &req)
	if err != nil {
		h.logger.Error("checkout session failed", "intentId", req.PaymentIntentID, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, resp)
}

// Refund - superuser refund passthrough
func (h *PaymentHandler) Refund(e *core.RequestEvent) error {
	if !e.HasSuperuserAuth() {
		return apis.NewForbiddenError("superuser only", nil)
	}

	paymentID := e.Request.PathValue("paymentId")

	var req services.RefundRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}

	refundID, err := h.checkout.Refund(e.Request.Context(), paymentID, &req)
	if err != nil {
		h.logger.Error("refund failed", "paymentId", paymentID, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"refundId": refundID})
}
