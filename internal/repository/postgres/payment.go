package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"swiftpay/internal/domain"
	"swiftpay/internal/payment"
	"swiftpay/pkg/errors"
)

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, owner_id, amount, currency, provider,
	payee_account_number AS "payee.account_number",
	payee_account_name AS "payee.account_name",
	payee_bank_name AS "payee.bank_name",
	payee_swift_code AS "payee.swift_code",
	status, COALESCE(status_reason, '') AS status_reason,
	verified_by, batch_id, submitted_at, created_at, updated_at
`

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
        INSERT INTO payments (
            id, owner_id, amount, currency, provider,
            payee_account_number, payee_account_name, payee_bank_name, payee_swift_code,
            status, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
        )
    `

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.OwnerID, p.Amount, p.Currency, p.Provider,
		p.Payee.AccountNumber, p.Payee.AccountName, p.Payee.BankName, p.Payee.SwiftCode,
		p.Status, p.CreatedAt, p.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create payment")
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find payment")
	}

	return &p, nil
}

func (r *PaymentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ANY($1::uuid[]) ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &payments, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find payments")
	}

	return payments, nil
}

func (r *PaymentRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE owner_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &payments, query, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find payments")
	}

	return payments, nil
}

func (r *PaymentRepository) FindByStatus(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	var payments []*domain.Payment

	if status == "" {
		query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC`
		if err := r.db.SelectContext(ctx, &payments, query); err != nil {
			return nil, errors.Wrap(err, "failed to find payments")
		}
		return payments, nil
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &payments, query, status); err != nil {
		return nil, errors.Wrap(err, "failed to find payments")
	}

	return payments, nil
}

// Transition applies an atomic compare-and-set status change. The WHERE
// clause on the current status is the concurrency-safety boundary: of two
// racing actors exactly one matches, the other gets ErrTransitionConflict and
// nothing is written.
func (r *PaymentRepository) Transition(ctx context.Context, t *payment.Transition) (*domain.Payment, error) {
	query := `
		UPDATE payments SET
			status = $3,
			verified_by = CASE WHEN $3 = 'verified' THEN $4 ELSE verified_by END,
			status_reason = CASE WHEN $5 <> '' THEN $5 ELSE status_reason END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + paymentColumns

	var p domain.Payment
	err := r.db.GetContext(ctx, &p, query, t.PaymentID, t.From, t.To, t.ActorID, t.Reason)
	if err == sql.ErrNoRows {
		// Distinguish a lost race from a missing record.
		if _, findErr := r.FindByID(ctx, t.PaymentID); findErr != nil {
			return nil, findErr
		}
		return nil, errors.ErrTransitionConflict
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to transition payment")
	}

	return &p, nil
}

// MarkSubmitted moves every payment in ids from verified to submitted inside
// one transaction. If any member is no longer verified the whole update rolls
// back, preserving the all-or-nothing release contract.
func (r *PaymentRepository) MarkSubmitted(ctx context.Context, ids []uuid.UUID, batchID uuid.UUID, releasedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin batch transaction")
	}
	defer tx.Rollback()

	query := `
		UPDATE payments SET
			status = 'submitted',
			batch_id = $2,
			submitted_at = $3,
			updated_at = NOW()
		WHERE id = ANY($1::uuid[]) AND status = 'verified'
	`

	res, err := tx.ExecContext(ctx, query, pq.Array(uuidStrings(ids)), batchID, releasedAt)
	if err != nil {
		return errors.Wrap(err, "failed to submit batch")
	}

	moved, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to count batch rows")
	}
	if moved != int64(len(ids)) {
		return errors.ErrTransitionConflict
	}

	return errors.Wrap(tx.Commit(), "failed to commit batch")
}

// MarkCompleted records settlement acknowledgment for a batch.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, batchID uuid.UUID) (int64, error) {
	query := `
		UPDATE payments SET
			status = 'completed',
			updated_at = NOW()
		WHERE batch_id = $1 AND status = 'submitted'
	`

	res, err := r.db.ExecContext(ctx, query, batchID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to complete batch")
	}

	return res.RowsAffected()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
