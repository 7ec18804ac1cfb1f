package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents ISO 4217 currency codes supported for SWIFT payments.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	ZAR Currency = "ZAR"
	JPY Currency = "JPY"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
	CHF Currency = "CHF"
)

// SupportedCurrencies is the fixed set a payment may be denominated in.
var SupportedCurrencies = []Currency{USD, EUR, GBP, ZAR, JPY, AUD, CAD, CHF}

// IsSupported reports whether c belongs to the supported set.
func (c Currency) IsSupported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// ProviderSWIFT is the only supported payment rail. The field is retained on
// Payment for future extensibility.
const ProviderSWIFT = "SWIFT"

// Role distinguishes retail customers from bank staff.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
)

// Principal is the authenticated identity for the duration of a request.
// It is resolved from the bearer credential and never constructed from
// client-supplied body fields.
type Principal struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Role          Role      `json:"role"`
	AccountNumber string    `json:"account_number,omitempty"` // customers only
}

// User represents a stored account holder or staff member.
type User struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Username      string     `json:"username" db:"username"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	FullName      string     `json:"full_name" db:"full_name"`
	Role          Role       `json:"role" db:"role"`
	AccountNumber string     `json:"account_number,omitempty" db:"account_number"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	LastLogin     *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// PaymentStatus is the lifecycle state of a payment instruction.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusVerified  PaymentStatus = "verified"
	PaymentStatusSubmitted PaymentStatus = "submitted"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

// IsTerminal reports whether no further transition may leave s.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusRejected
}

// Payee holds the beneficiary details of a payment instruction.
type Payee struct {
	AccountNumber string `json:"account_number" db:"account_number"`
	AccountName   string `json:"account_name" db:"account_name"`
	BankName      string `json:"bank_name" db:"bank_name"`
	SwiftCode     string `json:"swift_code" db:"swift_code"`
}

// Payment is the central entity: one international payment instruction.
// Amount, currency, and payee fields are immutable once the payment leaves
// pending; status only ever moves forward along the lifecycle graph.
type Payment struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OwnerID      uuid.UUID       `json:"owner_id" db:"owner_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Currency     Currency        `json:"currency" db:"currency"`
	Provider     string          `json:"provider" db:"provider"`
	Payee        Payee           `json:"payee" db:"payee"`
	Status       PaymentStatus   `json:"status" db:"status"`
	StatusReason string          `json:"status_reason,omitempty" db:"status_reason"`
	VerifiedBy   *uuid.UUID      `json:"verified_by,omitempty" db:"verified_by"`
	BatchID      *uuid.UUID      `json:"batch_id,omitempty" db:"batch_id"`
	SubmittedAt  *time.Time      `json:"submitted_at,omitempty" db:"submitted_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// SettlementBatch is a set of verified payments released together.
type SettlementBatch struct {
	ID         uuid.UUID       `json:"id"`
	Reference  string          `json:"reference"`
	PaymentIDs []uuid.UUID     `json:"payment_ids"`
	Total      decimal.Decimal `json:"total"`
	ReleasedBy uuid.UUID       `json:"released_by"`
	ReleasedAt time.Time       `json:"released_at"`
}

// BatchResult reports which payments a release actually moved.
type BatchResult struct {
	BatchID    uuid.UUID   `json:"batch_id"`
	Reference  string      `json:"reference"`
	Count      int         `json:"count"`
	PaymentIDs []uuid.UUID `json:"payment_ids"`
	ReleasedAt time.Time   `json:"released_at"`
}
