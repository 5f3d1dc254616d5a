package handlers

import (
	"errors"
	"event-marketplace/internal/services/paymongo"
	"event-marketplace/internal/status"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError translates domain errors into HTTP replies. Gateway and
// transport details stay in the server log; callers get the taxonomy,
// not the upstream internals.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("not found", nil)
	case errors.Is(err, status.ErrUnauthorized):
		return apis.NewUnauthorizedError("unauthorized", nil)
	case errors.Is(err, status.ErrInvalidInput):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrGatewayUnavailable):
		return apis.NewApiError(http.StatusBadGateway, "payment provider unavailable", nil)
	}

	var providerErr *paymongo.APIError
	if errors.As(err, &providerErr) {
		return apis.NewBadRequestError("payment provider rejected the request", nil)
	}

	return apis.NewInternalServerError("something went wrong", nil)
}
