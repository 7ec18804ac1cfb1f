package release

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"swiftpay/internal/domain"
	pkgerrors "swiftpay/pkg/errors"
	"swiftpay/pkg/logger"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockRepository) MarkSubmitted(ctx context.Context, ids []uuid.UUID, batchID uuid.UUID, releasedAt time.Time) error {
	args := m.Called(ctx, ids, batchID, releasedAt)
	return args.Error(0)
}

func (m *MockRepository) MarkCompleted(ctx context.Context, batchID uuid.UUID) (int64, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).(int64), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SubmitBatch(ctx context.Context, batch *domain.SettlementBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func verifiedPayment(id uuid.UUID, amount int64) *domain.Payment {
	return &domain.Payment{
		ID:      id,
		OwnerID: uuid.New(),
		Amount:  decimal.NewFromInt(amount),
		Status:  domain.PaymentStatusVerified,
	}
}

// --- Tests ---

func TestRelease_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id1, id2 := uuid.New(), uuid.New()
	payments := []*domain.Payment{verifiedPayment(id1, 100), verifiedPayment(id2, 250)}

	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id1, id2}).Return(payments, nil)
	mockGateway.On("SubmitBatch", mock.Anything, mock.MatchedBy(func(b *domain.SettlementBatch) bool {
		return b.Total.Equal(decimal.NewFromInt(350)) && len(b.PaymentIDs) == 2
	})).Return(nil)
	mockRepo.On("MarkSubmitted", ctx, []uuid.UUID{id1, id2}, mock.Anything, mock.Anything).Return(nil)

	result, err := coordinator.Release(ctx, employee, []uuid.UUID{id1, id2})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []uuid.UUID{id1, id2}, result.PaymentIDs)
	mockRepo.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}

func TestRelease_DeduplicatesSelection(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id := uuid.New()
	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id}).Return([]*domain.Payment{verifiedPayment(id, 75)}, nil)
	mockGateway.On("SubmitBatch", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("MarkSubmitted", ctx, []uuid.UUID{id}, mock.Anything, mock.Anything).Return(nil)

	result, err := coordinator.Release(ctx, employee, []uuid.UUID{id, id, uuid.Nil, id})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Count)
}

func TestRelease_EmptyBatch(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	_, err := coordinator.Release(context.Background(), employee, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyBatch)

	// A selection of only nil ids is still empty.
	_, err = coordinator.Release(context.Background(), employee, []uuid.UUID{uuid.Nil})
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyBatch)

	mockRepo.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

func TestRelease_CustomerForbidden(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	customer := domain.Principal{ID: uuid.New(), Role: domain.RoleCustomer}

	_, err := coordinator.Release(context.Background(), customer, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	mockRepo.AssertNotCalled(t, "FindByIDs", mock.Anything, mock.Anything)
}

func TestRelease_UnknownPayment(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id1, id2 := uuid.New(), uuid.New()
	// Only one of the two referenced payments exists.
	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id1, id2}).Return([]*domain.Payment{verifiedPayment(id1, 10)}, nil)

	_, err := coordinator.Release(ctx, employee, []uuid.UUID{id1, id2})
	assert.ErrorIs(t, err, pkgerrors.ErrPaymentNotFound)
	mockGateway.AssertNotCalled(t, "SubmitBatch", mock.Anything, mock.Anything)
}

func TestRelease_MixedStatusRejectsWholeBatch(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id1, id2 := uuid.New(), uuid.New()
	pending := verifiedPayment(id2, 20)
	pending.Status = domain.PaymentStatusPending

	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id1, id2}).Return(
		[]*domain.Payment{verifiedPayment(id1, 10), pending}, nil)

	_, err := coordinator.Release(ctx, employee, []uuid.UUID{id1, id2})
	assert.ErrorIs(t, err, pkgerrors.ErrBatchNotVerified)

	// Nothing submitted, nothing marked.
	mockGateway.AssertNotCalled(t, "SubmitBatch", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "MarkSubmitted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelease_OwnPaymentInBatchForbidden(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id := uuid.New()
	own := verifiedPayment(id, 40)
	own.OwnerID = employee.ID

	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id}).Return([]*domain.Payment{own}, nil)

	_, err := coordinator.Release(ctx, employee, []uuid.UUID{id})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	mockGateway.AssertNotCalled(t, "SubmitBatch", mock.Anything, mock.Anything)
}

func TestRelease_GatewayFailureLeavesStatusUntouched(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id := uuid.New()
	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id}).Return([]*domain.Payment{verifiedPayment(id, 30)}, nil)
	mockGateway.On("SubmitBatch", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := coordinator.Release(ctx, employee, []uuid.UUID{id})
	assert.ErrorIs(t, err, pkgerrors.ErrSettlementFailed)
	mockRepo.AssertNotCalled(t, "MarkSubmitted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelease_GatewayTimeoutIsRetryable(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id := uuid.New()
	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id}).Return([]*domain.Payment{verifiedPayment(id, 30)}, nil)
	mockGateway.On("SubmitBatch", mock.Anything, mock.Anything).Return(context.DeadlineExceeded)

	_, err := coordinator.Release(ctx, employee, []uuid.UUID{id})
	assert.ErrorIs(t, err, pkgerrors.ErrSettlementTimeout)
	mockRepo.AssertNotCalled(t, "MarkSubmitted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRelease_StoreConflictSurfaces(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	employee := domain.Principal{ID: uuid.New(), Role: domain.RoleEmployee}

	id := uuid.New()
	mockRepo.On("FindByIDs", ctx, []uuid.UUID{id}).Return([]*domain.Payment{verifiedPayment(id, 30)}, nil)
	mockGateway.On("SubmitBatch", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("MarkSubmitted", ctx, []uuid.UUID{id}, mock.Anything, mock.Anything).Return(pkgerrors.ErrTransitionConflict)

	_, err := coordinator.Release(ctx, employee, []uuid.UUID{id})
	assert.ErrorIs(t, err, pkgerrors.ErrTransitionConflict)
}

func TestConfirm(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	batchID := uuid.New()

	mockRepo.On("MarkCompleted", ctx, batchID).Return(int64(3), nil)

	moved, err := coordinator.Confirm(ctx, batchID)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), moved)
}

func TestConfirm_UnknownBatch(t *testing.T) {
	mockRepo := new(MockRepository)
	mockGateway := new(MockGateway)
	coordinator := NewCoordinator(mockRepo, mockGateway, logger.NewNop(), time.Second)

	ctx := context.Background()
	batchID := uuid.New()

	mockRepo.On("MarkCompleted", ctx, batchID).Return(int64(0), nil)

	_, err := coordinator.Confirm(ctx, batchID)
	assert.ErrorIs(t, err, pkgerrors.ErrBatchNotFound)
}
