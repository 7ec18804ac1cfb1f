// Package release batches verified payments and hands them to the SWIFT
// settlement network as a single all-or-nothing unit.
package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"swiftpay/internal/domain"
	"swiftpay/internal/lifecycle"
	pkgerrors "swiftpay/pkg/errors"
	"swiftpay/pkg/logger"
)

// Repository is the slice of the payment store the coordinator needs.
type Repository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error)
	// MarkSubmitted moves every payment in ids from verified to submitted in
	// one transaction, stamping the batch id and release time. It fails with
	// ErrTransitionConflict and changes nothing unless all of ids match.
	MarkSubmitted(ctx context.Context, ids []uuid.UUID, batchID uuid.UUID, releasedAt time.Time) error
	// MarkCompleted moves every submitted payment in the batch to completed
	// on settlement acknowledgment, returning how many rows moved.
	MarkCompleted(ctx context.Context, batchID uuid.UUID) (int64, error)
}

// SettlementGateway is the one-way interface to the settlement network.
// Submission is idempotent per batch id, so a retry after an unknown outcome
// is always safe.
type SettlementGateway interface {
	SubmitBatch(ctx context.Context, batch *domain.SettlementBatch) error
}

type Coordinator struct {
	repo           Repository
	gateway        SettlementGateway
	logger         logger.Logger
	releaseTimeout time.Duration
}

func NewCoordinator(repo Repository, gateway SettlementGateway, log logger.Logger, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Coordinator{
		repo:           repo,
		gateway:        gateway,
		logger:         log,
		releaseTimeout: timeout,
	}
}

// Release submits the selected payments to the settlement network. Every
// referenced payment must currently be verified; if any is not, the whole
// batch is rejected and no payment changes status. On acceptance the batch
// moves verified -> submitted as one logical unit. If the external call fails
// or times out, every payment stays verified and the error is retryable.
func (c *Coordinator) Release(ctx context.Context, actor domain.Principal, paymentIDs []uuid.UUID) (*domain.BatchResult, error) {
	if err := lifecycle.Authorize(actor, lifecycle.EventRelease, nil); err != nil {
		return nil, err
	}

	ids := dedupe(paymentIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.ErrEmptyBatch
	}

	payments, err := c.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load batch payments")
	}
	if len(payments) != len(ids) {
		return nil, pkgerrors.ErrPaymentNotFound
	}

	total := decimal.Zero
	for _, p := range payments {
		if err := lifecycle.Authorize(actor, lifecycle.EventRelease, p); err != nil {
			return nil, err
		}
		if p.Status != domain.PaymentStatusVerified {
			c.logger.Warn("Batch rejected: payment not verified", map[string]interface{}{
				"payment_id": p.ID,
				"status":     p.Status,
			})
			return nil, pkgerrors.ErrBatchNotVerified
		}
		total = total.Add(p.Amount)
	}

	releasedAt := time.Now().UTC()
	batch := &domain.SettlementBatch{
		ID:         uuid.New(),
		Reference:  generateBatchReference(),
		PaymentIDs: ids,
		Total:      total,
		ReleasedBy: actor.ID,
		ReleasedAt: releasedAt,
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.releaseTimeout)
	defer cancel()

	if err := c.gateway.SubmitBatch(submitCtx, batch); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Outcome unknown: payments stay verified and the caller may retry
			// with the same selection; the gateway dedupes on batch id.
			c.logger.Error("Settlement submission timed out", map[string]interface{}{
				"batch_id": batch.ID,
				"count":    len(ids),
			})
			return nil, pkgerrors.ErrSettlementTimeout
		}
		c.logger.Error("Settlement submission failed", map[string]interface{}{
			"batch_id": batch.ID,
			"error":    err.Error(),
		})
		return nil, pkgerrors.Wrap(pkgerrors.ErrSettlementFailed, err.Error())
	}

	if err := c.repo.MarkSubmitted(ctx, ids, batch.ID, releasedAt); err != nil {
		// A concurrent actor changed a member between the pre-check and the
		// store update. Nothing was written; the gateway accepts the same
		// batch id again on retry.
		c.logger.Error("Batch status update lost a race", map[string]interface{}{
			"batch_id": batch.ID,
			"error":    err.Error(),
		})
		return nil, err
	}

	c.logger.Info("Batch released to settlement network", map[string]interface{}{
		"batch_id":  batch.ID,
		"reference": batch.Reference,
		"count":     len(ids),
		"total":     total.String(),
	})

	return &domain.BatchResult{
		BatchID:    batch.ID,
		Reference:  batch.Reference,
		Count:      len(ids),
		PaymentIDs: ids,
		ReleasedAt: releasedAt,
	}, nil
}

// Confirm records the settlement network's acknowledgment for a batch,
// moving its submitted payments to completed.
func (c *Coordinator) Confirm(ctx context.Context, batchID uuid.UUID) (int64, error) {
	moved, err := c.repo.MarkCompleted(ctx, batchID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to complete batch")
	}
	if moved == 0 {
		return 0, pkgerrors.ErrBatchNotFound
	}

	c.logger.Info("Settlement confirmed", map[string]interface{}{
		"batch_id": batchID,
		"count":    moved,
	})

	return moved, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func generateBatchReference() string {
	return fmt.Sprintf("BATCH-%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
