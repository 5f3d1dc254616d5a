package handlers

import (
	"event-marketplace/internal/services"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PayoutHandler struct {
	payouts *services.PayoutService
	logger  *slog.Logger
}

func NewPayoutHandler(payouts *services.PayoutService, logger *slog.Logger) *PayoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayoutHandler{payouts: payouts, logger: logger}
}

// GetOrganizerPayments - balance summary and payout history
func (h *PayoutHandler) GetOrganizerPayments(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	summary, err := h.payouts.Balance(e.Request.Context(), e.Auth.Id)
	if err != nil {
		h.logger.Error("balance summary failed", "organizerId", e.Auth.Id, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, summary)
}

type payoutRequestBody struct {
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// RequestPayout - lock unpaid earnings behind a pending payout
func (h *PayoutHandler) RequestPayout(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req payoutRequestBody
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("invalid request body", err)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "bank_transfer"
	}

	payout, err := h.payouts.RequestPayout(e.Request.Context(), e.Auth.Id, req.Amount, req.PaymentMethod)
	if err != nil {
		h.logger.Error("payout request failed", "organizerId", e.Auth.Id, "amount", req.Amount, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, payout)
}
