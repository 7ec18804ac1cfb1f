// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Authentication / authorization
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthentication     = errors.New("authentication required")
	ErrForbidden          = errors.New("operation not permitted for role")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")

	// Payment lifecycle
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrTransitionConflict = errors.New("payment modified concurrently, retry")
	ErrPaymentImmutable   = errors.New("payment fields immutable after leaving pending")

	// Batch release
	ErrEmptyBatch        = errors.New("batch must contain at least one payment")
	ErrBatchNotVerified  = errors.New("batch contains payments that are not verified")
	ErrBatchNotFound     = errors.New("settlement batch not found")
	ErrSettlementFailed  = errors.New("settlement network rejected the batch")
	ErrSettlementTimeout = errors.New("settlement network did not respond, batch unchanged")

	// Validation
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrDuplicateRequest        = errors.New("duplicate request in flight")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
