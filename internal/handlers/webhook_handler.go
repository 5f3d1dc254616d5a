package handlers

import (
	"event-marketplace/internal/services"
	"event-marketplace/internal/services/paymongo"
	"io"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type WebhookHandler struct {
	gateway   *paymongo.Client
	reconcile *services.ReconcileService
	logger    *slog.Logger
}

func NewWebhookHandler(gateway *paymongo.Client, reconcile *services.ReconcileService, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{gateway: gateway, reconcile: reconcile, logger: logger}
}

// HandlePayMongoWebhook verifies and processes one delivery. The reply
// code is the contract with the provider: 200 stops redelivery, 401
// rejects an unauthenticated sender, 500 asks for a retry.
func (h *WebhookHandler) HandlePayMongoWebhook(e *core.RequestEvent) error {
	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("cannot read body", nil)
	}

	// Verification runs on the exact bytes received; parsing comes after.
	signature := e.Request.Header.Get("Paymongo-Signature")
	if !h.gateway.VerifyWebhookSignature(body, signature) {
		h.logger.Warn("webhook signature rejected",
			"remote", e.Request.RemoteAddr, "bodyBytes", len(body))
		return apis.NewUnauthorizedError("invalid signature", nil)
	}

	event, err := paymongo.ParseWebhookEvent(body)
	if err != nil {
		// Authenticated but unparseable. Redelivery of the same bytes
		// cannot succeed either, so acknowledge and move on.
		h.logger.Error("webhook body unparseable", "error", err)
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}

	if err := h.reconcile.HandleWebhookEvent(e.Request.Context(), event); err != nil {
		h.logger.Error("webhook processing failed",
			"eventId", event.ID, "type", event.Type, "error", err)
		return apis.NewInternalServerError("webhook processing failed", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
