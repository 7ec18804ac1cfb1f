// ==============================================================================
// PAYMENT SERVICE - internal/payment/service.go
// ==============================================================================
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swiftpay/internal/domain"
	"swiftpay/internal/lifecycle"
	pkgerrors "swiftpay/pkg/errors"
	"swiftpay/pkg/logger"
	"swiftpay/pkg/validator"
)

// Transition is a request for an atomic compare-and-set status change.
// The store applies it only when the current status equals From; a race lost
// to a concurrent actor surfaces as ErrTransitionConflict with no mutation.
type Transition struct {
	PaymentID uuid.UUID
	From      domain.PaymentStatus
	To        domain.PaymentStatus
	ActorID   uuid.UUID
	Reason    string
}

// Repository is the canonical payment store.
type Repository interface {
	Create(ctx context.Context, p *domain.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Payment, error)
	FindByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error)
	Transition(ctx context.Context, t *Transition) (*domain.Payment, error)
}

type Service struct {
	repo      Repository
	validator *validator.Validator
	logger    logger.Logger
}

func NewService(repo Repository, val *validator.Validator, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: val,
		logger:    log,
	}
}

// CreatePaymentRequest carries the customer-supplied fields of a new payment.
// Owner identity is never read from the request; it comes from the principal.
type CreatePaymentRequest struct {
	Amount             string `json:"amount" validate:"required,payment_amount"`
	Currency           string `json:"currency" validate:"required,oneof=USD EUR GBP ZAR JPY AUD CAD CHF"`
	Provider           string `json:"provider"`
	PayeeAccountNumber string `json:"payeeAccountNumber" validate:"required,account_number"`
	PayeeAccountName   string `json:"payeeAccountName" validate:"required,payee_name"`
	PayeeBankName      string `json:"payeeBankName" validate:"required,bank_name"`
	SwiftCode          string `json:"swiftCode" validate:"required,swift_code"`
}

// ValidationError carries per-field syntactic failures back to the caller.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}

func (s *Service) sanitize(req *CreatePaymentRequest) {
	req.Amount = validator.Sanitize(req.Amount)
	req.Currency = validator.Sanitize(req.Currency)
	req.Provider = validator.Sanitize(req.Provider)
	req.PayeeAccountNumber = validator.Sanitize(req.PayeeAccountNumber)
	req.PayeeAccountName = validator.Sanitize(req.PayeeAccountName)
	req.PayeeBankName = validator.Sanitize(req.PayeeBankName)
	req.SwiftCode = validator.NormalizeSwiftCode(validator.Sanitize(req.SwiftCode))
}

// CreatePayment validates and stores a new payment instruction for the
// authenticated customer. All fields must pass; there is no partial acceptance.
func (s *Service) CreatePayment(ctx context.Context, actor domain.Principal, req *CreatePaymentRequest) (*domain.Payment, error) {
	if err := lifecycle.AuthorizeCreate(actor); err != nil {
		return nil, err
	}

	s.sanitize(req)

	if errs := s.validator.ValidateStructured(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"amount": "invalid amount"}}
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:       uuid.New(),
		OwnerID:  actor.ID,
		Amount:   amount,
		Currency: domain.Currency(req.Currency),
		Provider: domain.ProviderSWIFT,
		Payee: domain.Payee{
			AccountNumber: req.PayeeAccountNumber,
			AccountName:   req.PayeeAccountName,
			BankName:      req.PayeeBankName,
			SwiftCode:     req.SwiftCode,
		},
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create payment")
	}

	s.logger.Info("Payment created", map[string]interface{}{
		"payment_id": p.ID,
		"owner_id":   p.OwnerID,
		"amount":     p.Amount.String(),
		"currency":   p.Currency,
	})

	return p, nil
}

// ListMyPayments returns the customer's own payments, newest first.
func (s *Service) ListMyPayments(ctx context.Context, actor domain.Principal) ([]*domain.Payment, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, pkgerrors.ErrForbidden
	}
	payments, err := s.repo.FindByOwner(ctx, actor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list payments")
	}
	return payments, nil
}

// ListPayments returns payments matching the status filter for staff review.
// An empty filter returns everything, most recent first.
func (s *Service) ListPayments(ctx context.Context, actor domain.Principal, status string) ([]*domain.Payment, error) {
	if actor.Role != domain.RoleEmployee {
		return nil, pkgerrors.ErrForbidden
	}

	filter := domain.PaymentStatus(validator.Sanitize(status))
	if filter != "" {
		switch filter {
		case domain.PaymentStatusPending, domain.PaymentStatusVerified,
			domain.PaymentStatusSubmitted, domain.PaymentStatusCompleted,
			domain.PaymentStatusRejected:
		default:
			return nil, &ValidationError{Fields: map[string]string{"status": "unknown status filter"}}
		}
	}

	payments, err := s.repo.FindByStatus(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list payments")
	}
	return payments, nil
}

// VerifyPayment applies the dual-control verification step: an employee moves
// a single pending payment to verified. Verification is deliberately
// per-payment; there is no bulk form, so individual errors are never masked.
func (s *Service) VerifyPayment(ctx context.Context, actor domain.Principal, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.Authorize(actor, lifecycle.EventVerify, p); err != nil {
		return nil, err
	}

	target, err := lifecycle.Next(p.Status, lifecycle.EventVerify)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, &Transition{
		PaymentID: paymentID,
		From:      p.Status,
		To:        target,
		ActorID:   actor.ID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment verified", map[string]interface{}{
		"payment_id":  paymentID,
		"verified_by": actor.ID,
	})

	return updated, nil
}

// RejectPayment moves a pending or verified payment to rejected with an
// explicit reason recorded for audit.
func (s *Service) RejectPayment(ctx context.Context, actor domain.Principal, paymentID uuid.UUID, reason string) (*domain.Payment, error) {
	reason = validator.Sanitize(reason)
	if reason == "" {
		return nil, pkgerrors.ErrRejectionReasonRequired
	}

	p, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := lifecycle.Authorize(actor, lifecycle.EventReject, p); err != nil {
		return nil, err
	}

	target, err := lifecycle.Next(p.Status, lifecycle.EventReject)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, &Transition{
		PaymentID: paymentID,
		From:      p.Status,
		To:        target,
		ActorID:   actor.ID,
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment rejected", map[string]interface{}{
		"payment_id":  paymentID,
		"rejected_by": actor.ID,
		"reason":      reason,
	})

	return updated, nil
}
