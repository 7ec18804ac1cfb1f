// Package lifecycle enforces the payment state-transition graph and the
// dual-control rule separating the submitting customer from staff actions.
package lifecycle

import (
	"swiftpay/internal/domain"
	"swiftpay/pkg/errors"

	"github.com/google/uuid"
)

// Event is a lifecycle action attempted against a payment.
type Event string

const (
	EventVerify  Event = "verify"
	EventRelease Event = "release"
	EventConfirm Event = "confirm"
	EventReject  Event = "reject"
)

type rule struct {
	From  domain.PaymentStatus
	Event Event
	To    domain.PaymentStatus
	Role  domain.Role
}

// transitions is the full legal graph. Creation is not listed: a payment only
// ever enters the graph at pending, via the store. Confirm is driven by the
// settlement network's acknowledgment rather than a staff action, but the
// transition rule still lives here so no caller can skip a state.
var transitions = []rule{
	{domain.PaymentStatusPending, EventVerify, domain.PaymentStatusVerified, domain.RoleEmployee},
	{domain.PaymentStatusVerified, EventRelease, domain.PaymentStatusSubmitted, domain.RoleEmployee},
	{domain.PaymentStatusSubmitted, EventConfirm, domain.PaymentStatusCompleted, domain.RoleEmployee},
	{domain.PaymentStatusPending, EventReject, domain.PaymentStatusRejected, domain.RoleEmployee},
	{domain.PaymentStatusVerified, EventReject, domain.PaymentStatusRejected, domain.RoleEmployee},
}

// Next returns the target status for applying event to a payment currently in
// from. ErrInvalidTransition is returned when the graph has no such edge,
// including every attempt to leave a terminal state.
func Next(from domain.PaymentStatus, event Event) (domain.PaymentStatus, error) {
	for _, r := range transitions {
		if r.From == from && r.Event == event {
			return r.To, nil
		}
	}
	return "", errors.ErrInvalidTransition
}

// RoleFor returns the role allowed to drive event. Role checks are exact
// matches against this table, never a hierarchy.
func RoleFor(event Event) (domain.Role, bool) {
	for _, r := range transitions {
		if r.Event == event {
			return r.Role, true
		}
	}
	return "", false
}

// CanTransition reports whether any event moves from directly to to.
func CanTransition(from, to domain.PaymentStatus) bool {
	for _, r := range transitions {
		if r.From == from && r.To == to {
			return true
		}
	}
	return false
}

// Authorize checks that actor may drive event against payment. Owners are
// always customers and staff actions always employees, so a principal acting
// on their own record is rejected even if role data were ever corrupted.
func Authorize(actor domain.Principal, event Event, payment *domain.Payment) error {
	required, ok := RoleFor(event)
	if !ok {
		return errors.ErrInvalidTransition
	}
	if actor.Role != required {
		return errors.ErrForbidden
	}
	if payment != nil && payment.OwnerID == actor.ID {
		return errors.ErrForbidden
	}
	return nil
}

// AuthorizeCreate checks that actor may create a payment.
func AuthorizeCreate(actor domain.Principal) error {
	if actor.Role != domain.RoleCustomer {
		return errors.ErrForbidden
	}
	if actor.ID == uuid.Nil {
		return errors.ErrAuthentication
	}
	return nil
}
