package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/gateway"
	"spaceremit/internal/model"
	"spaceremit/internal/repository"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint64) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uint64, status model.OrderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, id uint64, paymentRef string, paidAt time.Time) error {
	args := m.Called(ctx, id, paymentRef, paidAt)
	return args.Error(0)
}

func (m *MockOrderRepository) AddNote(ctx context.Context, orderID uint64, note string) error {
	args := m.Called(ctx, orderID, note)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *model.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id uint64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.Transaction, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]model.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) CountByStatus(ctx context.Context) (map[model.InternalStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.InternalStatus]int64), args.Error(1)
}

func newTestReconciler(orderRepo repository.OrderRepository, txRepo repository.TransactionRepository) *reconcileService {
	return &reconcileService{
		orderRepo: orderRepo,
		txRepo:    txRepo,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

func pendingOrder() *model.Order {
	return &model.Order{
		ID:           7,
		OrderKey:     "order_abc",
		Status:       model.OrderStatusPending,
		Total:        decimal.NewFromFloat(25.00),
		Currency:     "USD",
		BillingName:  "Ada Lovelace",
		BillingEmail: "ada@example.com",
	}
}

func approvedPayment() *gateway.PaymentData {
	return &gateway.PaymentData{
		ID:             "pay_1",
		StatusTag:      model.TagApproved,
		OriginalAmount: decimal.NewFromFloat(25.00),
		Currency:       "USD",
		PaymentMethod:  "card",
	}
}

func TestReconcileService_ResolveOrderByPaymentID(t *testing.T) {
	t.Run("resolves through transaction row", func(t *testing.T) {
		orderRepo := new(MockOrderRepository)
		txRepo := new(MockTransactionRepository)
		txRepo.On("FindByPaymentID", mock.Anything, "pay_1").
			Return(&model.Transaction{ID: 3, OrderID: 7, PaymentID: "pay_1"}, nil)
		orderRepo.On("FindByID", mock.Anything, uint64(7)).Return(pendingOrder(), nil)

		s := newTestReconciler(orderRepo, txRepo)
		order, err := s.ResolveOrderByPaymentID(context.Background(), "pay_1")

		require.NoError(t, err)
		assert.Equal(t, uint64(7), order.ID)
		txRepo.AssertExpectations(t)
		orderRepo.AssertExpectations(t)
	})

	t.Run("unknown payment id maps to order not found", func(t *testing.T) {
		orderRepo := new(MockOrderRepository)
		txRepo := new(MockTransactionRepository)
		txRepo.On("FindByPaymentID", mock.Anything, "pay_missing").
			Return(nil, gorm.ErrRecordNotFound)

		s := newTestReconciler(orderRepo, txRepo)
		_, err := s.ResolveOrderByPaymentID(context.Background(), "pay_missing")

		assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
	})

	t.Run("orphaned transaction maps to order not found", func(t *testing.T) {
		orderRepo := new(MockOrderRepository)
		txRepo := new(MockTransactionRepository)
		txRepo.On("FindByPaymentID", mock.Anything, "pay_1").
			Return(&model.Transaction{ID: 3, OrderID: 99, PaymentID: "pay_1"}, nil)
		orderRepo.On("FindByID", mock.Anything, uint64(99)).Return(nil, gorm.ErrRecordNotFound)

		s := newTestReconciler(orderRepo, txRepo)
		_, err := s.ResolveOrderByPaymentID(context.Background(), "pay_1")

		assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
	})
}

func TestReconcileService_AlreadyProcessed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		tx        *model.Transaction
		txErr     error
		tag       model.StatusTag
		duplicate bool
	}{
		{
			name:      "no transaction row is not a duplicate",
			txErr:     gorm.ErrRecordNotFound,
			tag:       model.TagApproved,
			duplicate: false,
		},
		{
			name: "same tag inside window is a duplicate",
			tx: &model.Transaction{
				StatusTag: model.TagApproved,
				UpdatedAt: now.Add(-2 * time.Minute),
			},
			tag:       model.TagApproved,
			duplicate: true,
		},
		{
			name: "same tag outside window is fresh",
			tx: &model.Transaction{
				StatusTag: model.TagApproved,
				UpdatedAt: now.Add(-6 * time.Minute),
			},
			tag:       model.TagApproved,
			duplicate: false,
		},
		{
			name: "different tag inside window is fresh",
			tx: &model.Transaction{
				StatusTag: model.TagPending,
				UpdatedAt: now.Add(-1 * time.Minute),
			},
			tag:       model.TagApproved,
			duplicate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txRepo := new(MockTransactionRepository)
			if tt.txErr != nil {
				txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(nil, tt.txErr)
			} else {
				txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(tt.tx, nil)
			}

			s := newTestReconciler(new(MockOrderRepository), txRepo)
			s.now = func() time.Time { return now }

			dup, err := s.AlreadyProcessed(context.Background(), "pay_1", tt.tag)

			require.NoError(t, err)
			assert.Equal(t, tt.duplicate, dup)
		})
	}
}

func TestReconcileService_Apply_ApprovedMarksPaid(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	txRepo := new(MockTransactionRepository)
	order := pendingOrder()
	payment := approvedPayment()

	orderRepo.On("MarkPaid", mock.Anything, order.ID, "pay_1", mock.AnythingOfType("time.Time")).Return(nil)
	orderRepo.On("AddNote", mock.Anything, order.ID, mock.MatchedBy(func(note string) bool {
		return note == "SpaceRemit payment completed (Completed). Payment ID: pay_1"
	})).Return(nil)
	txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(nil, gorm.ErrRecordNotFound)
	txRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *model.Transaction) bool {
		return tx.OrderID == order.ID &&
			tx.PaymentID == "pay_1" &&
			tx.Status == model.StatusCompleted &&
			tx.StatusTag == model.TagApproved &&
			tx.PaymentMethod == "card" &&
			tx.CustomerEmail == "ada@example.com"
	})).Return(nil)

	s := newTestReconciler(orderRepo, txRepo)
	outcome, err := s.Apply(context.Background(), order, payment, []byte(`{"data":{"id":"pay_1"}}`))

	require.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.Equal(t, model.OrderStatusCompleted, outcome.OrderStatus)
	assert.Empty(t, outcome.Warning)
	assert.True(t, order.IsPaid())
	assert.Equal(t, "pay_1", order.PaymentRef)
	orderRepo.AssertExpectations(t)
	txRepo.AssertExpectations(t)
}

func TestReconcileService_Apply_ApprovedOnPaidOrderIsNoOp(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	txRepo := new(MockTransactionRepository)

	paidAt := time.Now().Add(-time.Hour)
	order := pendingOrder()
	order.Status = model.OrderStatusCompleted
	order.PaidAt = &paidAt
	order.PaymentRef = "pay_1"

	existing := &model.Transaction{
		ID:        3,
		OrderID:   order.ID,
		PaymentID: "pay_1",
		Status:    model.StatusCompleted,
		StatusTag: model.TagApproved,
	}
	txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(existing, nil)
	txRepo.On("Update", mock.Anything, existing).Return(nil)

	s := newTestReconciler(orderRepo, txRepo)
	outcome, err := s.Apply(context.Background(), order, approvedPayment(), nil)

	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Equal(t, model.OrderStatusCompleted, outcome.OrderStatus)
	// The transaction row is still refreshed so the idempotency window tracks
	// the latest sighting, but the order is never re-marked paid.
	orderRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	txRepo.AssertExpectations(t)
}

func TestReconcileService_Apply_Transitions(t *testing.T) {
	tests := []struct {
		name          string
		tag           model.StatusTag
		initialStatus model.OrderStatus
		paid          bool
		wantStatus    model.OrderStatus
		wantChanged   bool
	}{
		{"pending holds the order", model.TagPending, model.OrderStatusPending, false, model.OrderStatusOnHold, true},
		{"pending is idempotent on held order", model.TagPending, model.OrderStatusOnHold, false, model.OrderStatusOnHold, false},
		{"processing moves pending order", model.TagProcessing, model.OrderStatusPending, false, model.OrderStatusProcessing, true},
		{"pending never demotes a paid order", model.TagPending, model.OrderStatusCompleted, true, model.OrderStatusCompleted, false},
		{"processing never demotes a paid order", model.TagProcessing, model.OrderStatusCompleted, true, model.OrderStatusCompleted, false},
		{"failed never demotes a paid order", model.TagFailed, model.OrderStatusCompleted, true, model.OrderStatusCompleted, false},
		{"refused never demotes a paid order", model.TagRefused, model.OrderStatusCompleted, true, model.OrderStatusCompleted, false},
		{"expired never demotes a paid order", model.TagExpired, model.OrderStatusCompleted, true, model.OrderStatusCompleted, false},
		{"failed fails the order", model.TagFailed, model.OrderStatusPending, false, model.OrderStatusFailed, true},
		{"failed is idempotent on failed order", model.TagFailed, model.OrderStatusFailed, false, model.OrderStatusFailed, false},
		{"refused cancels the order", model.TagRefused, model.OrderStatusOnHold, false, model.OrderStatusCancelled, true},
		{"expired cancels the order", model.TagExpired, model.OrderStatusPending, false, model.OrderStatusCancelled, true},
		{"expired is idempotent on cancelled order", model.TagExpired, model.OrderStatusCancelled, false, model.OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderRepo := new(MockOrderRepository)
			txRepo := new(MockTransactionRepository)

			order := pendingOrder()
			order.Status = tt.initialStatus
			if tt.paid {
				paidAt := time.Now().Add(-time.Hour)
				order.PaidAt = &paidAt
			}

			payment := approvedPayment()
			payment.StatusTag = tt.tag

			if tt.wantChanged {
				orderRepo.On("UpdateStatus", mock.Anything, order.ID, tt.wantStatus).Return(nil)
				orderRepo.On("AddNote", mock.Anything, order.ID, mock.AnythingOfType("string")).Return(nil)
			}
			txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(nil, gorm.ErrRecordNotFound)
			txRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Transaction")).Return(nil)

			s := newTestReconciler(orderRepo, txRepo)
			outcome, err := s.Apply(context.Background(), order, payment, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, outcome.Changed)
			assert.Equal(t, tt.wantStatus, outcome.OrderStatus)
			orderRepo.AssertExpectations(t)
			orderRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			if !tt.wantChanged {
				orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestReconcileService_Apply_UnknownTagWarnsOnly(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	txRepo := new(MockTransactionRepository)

	order := pendingOrder()
	payment := approvedPayment()
	payment.StatusTag = model.StatusTag("Z")

	txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(nil, gorm.ErrRecordNotFound)
	txRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *model.Transaction) bool {
		// Unknown tags fail safe to pending on the stored record.
		return tx.Status == model.StatusPending && tx.StatusTag == model.StatusTag("Z")
	})).Return(nil)

	s := newTestReconciler(orderRepo, txRepo)
	outcome, err := s.Apply(context.Background(), order, payment, nil)

	require.NoError(t, err)
	assert.False(t, outcome.Changed)
	assert.Equal(t, model.OrderStatusPending, outcome.OrderStatus)
	orderRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	orderRepo.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	txRepo.AssertExpectations(t)
}

func TestReconcileService_Apply_TransactionFailureIsNonFatal(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	txRepo := new(MockTransactionRepository)
	order := pendingOrder()

	orderRepo.On("MarkPaid", mock.Anything, order.ID, "pay_1", mock.AnythingOfType("time.Time")).Return(nil)
	orderRepo.On("AddNote", mock.Anything, order.ID, mock.AnythingOfType("string")).Return(nil)
	txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(nil, gorm.ErrRecordNotFound)
	txRepo.On("Create", mock.Anything, mock.AnythingOfType("*model.Transaction")).
		Return(errors.New("mysql has gone away"))

	s := newTestReconciler(orderRepo, txRepo)
	outcome, err := s.Apply(context.Background(), order, approvedPayment(), nil)

	require.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.Equal(t, model.OrderStatusCompleted, outcome.OrderStatus)
	assert.Contains(t, outcome.Warning, "transaction record update failed")
}

func TestReconcileService_Apply_OrderWriteFailureAborts(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	txRepo := new(MockTransactionRepository)
	order := pendingOrder()

	orderRepo.On("MarkPaid", mock.Anything, order.ID, "pay_1", mock.AnythingOfType("time.Time")).
		Return(errors.New("deadlock found"))

	s := newTestReconciler(orderRepo, txRepo)
	_, err := s.Apply(context.Background(), order, approvedPayment(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply order transition")
	txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	txRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestReconcileService_Apply_StoresGatewayPayload(t *testing.T) {
	orderRepo := new(MockOrderRepository)
	txRepo := new(MockTransactionRepository)

	order := pendingOrder()
	order.Status = model.OrderStatusOnHold

	payment := approvedPayment()
	payment.StatusTag = model.TagProcessing
	raw := []byte(`{"data":{"id":"pay_1","status_tag":"D"}}`)

	orderRepo.On("UpdateStatus", mock.Anything, order.ID, model.OrderStatusProcessing).Return(nil)
	orderRepo.On("AddNote", mock.Anything, order.ID, mock.AnythingOfType("string")).Return(nil)
	txRepo.On("FindByPaymentID", mock.Anything, "pay_1").Return(nil, gorm.ErrRecordNotFound)
	txRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *model.Transaction) bool {
		return string(tx.GatewayResponse) == string(raw)
	})).Return(nil)

	s := newTestReconciler(orderRepo, txRepo)
	_, err := s.Apply(context.Background(), order, payment, raw)

	require.NoError(t, err)
	txRepo.AssertExpectations(t)
}
