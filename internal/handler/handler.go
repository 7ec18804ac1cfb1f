// Package handler exposes the payment portal's HTTP surface.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"swiftpay/internal/payment"
	pkgerrors "swiftpay/pkg/errors"
)

// Logger is the subset of the service logger handlers need.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "validation failed",
		"fields": fields,
	})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Conflicts are reported as retryable; nothing was mutated when they occur.
func respondServiceError(w http.ResponseWriter, err error) {
	var valErr *payment.ValidationError
	if errors.As(err, &valErr) {
		respondValidationErrors(w, valErr.Fields)
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrAuthentication):
		respondError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, pkgerrors.ErrForbidden):
		respondError(w, http.StatusForbidden, "Operation not permitted for your role")
	case errors.Is(err, pkgerrors.ErrPaymentNotFound), errors.Is(err, pkgerrors.ErrBatchNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pkgerrors.ErrInvalidTransition), errors.Is(err, pkgerrors.ErrTransitionConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pkgerrors.ErrEmptyBatch),
		errors.Is(err, pkgerrors.ErrBatchNotVerified),
		errors.Is(err, pkgerrors.ErrRejectionReasonRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pkgerrors.ErrSettlementTimeout):
		respondError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, pkgerrors.ErrSettlementFailed):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
