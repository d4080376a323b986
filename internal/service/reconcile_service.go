package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"spaceremit/internal/cache"
	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/gateway"
	"spaceremit/internal/model"
	"spaceremit/internal/repository"
)

// idempotencyWindow bounds duplicate notification suppression. An identical
// status seen again after the window is treated as a fresh confirmation
// rather than dropped, so a stale updated_at cannot swallow state forever.
const idempotencyWindow = 5 * time.Minute

const orderLookupCacheTTL = 10 * time.Minute

// Outcome summarizes what a reconciliation pass did.
type Outcome struct {
	OrderID     uint64            `json:"order_id"`
	OrderStatus model.OrderStatus `json:"order_status"`
	StatusTag   model.StatusTag   `json:"status_tag"`
	Changed     bool              `json:"changed"`
	// Warning carries a non-fatal persistence problem on the transaction row.
	// The order-status change, if any, still stands.
	Warning string `json:"warning,omitempty"`
}

// ReconcileService drives order-status transitions from verified payment
// statuses. All three callback paths funnel through it; nothing else mutates
// order status.
type ReconcileService interface {
	ResolveOrderByPaymentID(ctx context.Context, paymentID string) (*model.Order, error)
	AlreadyProcessed(ctx context.Context, paymentID string, tag model.StatusTag) (bool, error)
	Apply(ctx context.Context, order *model.Order, payment *gateway.PaymentData, rawPayload []byte) (*Outcome, error)
}

type reconcileService struct {
	orderRepo repository.OrderRepository
	txRepo    repository.TransactionRepository
	cache     *cache.Client
	logger    zerolog.Logger
	// Mutex map for per-payment-reference locking
	paymentMutexes sync.Map
	now            func() time.Time
}

// NewReconcileService creates a new reconciliation service.
func NewReconcileService(
	orderRepo repository.OrderRepository,
	txRepo repository.TransactionRepository,
	cache *cache.Client,
	logger zerolog.Logger,
) ReconcileService {
	return &reconcileService{
		orderRepo: orderRepo,
		txRepo:    txRepo,
		cache:     cache,
		logger:    logger.With().Str("component", "reconcile").Logger(),
		now:       time.Now,
	}
}

// getMutex returns a mutex for a specific payment reference.
func (s *reconcileService) getMutex(paymentID string) *sync.Mutex {
	value, _ := s.paymentMutexes.LoadOrStore(paymentID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

func orderLookupKey(paymentID string) string {
	return "spaceremit:order_by_payment:" + paymentID
}

// ResolveOrderByPaymentID finds the order owning a payment reference through
// the stored transaction row, with a redis-backed lookup cache in front.
func (s *reconcileService) ResolveOrderByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var orderID uint64
	if hit, _ := s.cache.GetJSON(ctx, orderLookupKey(paymentID), &orderID); hit {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err == nil {
			return order, nil
		}
		_ = s.cache.Delete(ctx, orderLookupKey(paymentID))
	}

	tx, err := s.txRepo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, tx.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, orderLookupKey(paymentID), order.ID, orderLookupCacheTTL)
	return order, nil
}

// AlreadyProcessed reports whether a notification is a duplicate: the stored
// transaction already carries the same status tag and was updated inside the
// idempotency window. This is a heuristic, not a cryptographic idempotency
// key.
func (s *reconcileService) AlreadyProcessed(ctx context.Context, paymentID string, tag model.StatusTag) (bool, error) {
	tx, err := s.txRepo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if tx.StatusTag == tag && s.now().Sub(tx.UpdatedAt) < idempotencyWindow {
		return true, nil
	}
	return false, nil
}

// Apply runs the state machine for one verified payment status. Notifications
// for the same payment reference are serialized through a per-reference mutex
// so concurrent webhook delivery applies strictly in arrival order. The
// order-status write lands first and the transaction-row refresh second: a
// crash between the two leaves the safer already-paid state rather than a
// stale pending one.
func (s *reconcileService) Apply(ctx context.Context, order *model.Order, payment *gateway.PaymentData, rawPayload []byte) (*Outcome, error) {
	mu := s.getMutex(payment.ID)
	mu.Lock()
	defer mu.Unlock()

	previous := order.Status

	changed, err := s.applyOrderTransition(ctx, order, payment)
	if err != nil {
		return nil, fmt.Errorf("apply order transition: %w", err)
	}

	warning := ""
	if err := s.upsertTransaction(ctx, order, payment, rawPayload); err != nil {
		s.logger.Error().
			Err(err).
			Str("payment_id", payment.ID).
			Uint64("order_id", order.ID).
			Msg("transaction record update failed")
		warning = "transaction record update failed: " + err.Error()
	}

	s.logger.Info().
		Str("payment_id", payment.ID).
		Uint64("order_id", order.ID).
		Str("status_tag", string(payment.StatusTag)).
		Str("previous_status", string(previous)).
		Str("new_status", string(order.Status)).
		Bool("changed", changed).
		Msg("payment status reconciled")

	return &Outcome{
		OrderID:     order.ID,
		OrderStatus: order.Status,
		StatusTag:   payment.StatusTag,
		Changed:     changed,
		Warning:     warning,
	}, nil
}

// applyOrderTransition applies the status-tag keyed transition table to the
// order. Paid is absorbing: once collected, no tag moves the order back.
func (s *reconcileService) applyOrderTransition(ctx context.Context, order *model.Order, payment *gateway.PaymentData) (bool, error) {
	label := payment.StatusTag.Label()

	if order.IsPaid() && !payment.StatusTag.Paid() {
		// A late or out-of-order non-paid notification must never revert a
		// collected payment. The transaction row is still refreshed upstream.
		return false, nil
	}

	switch payment.StatusTag {
	case model.TagApproved, model.TagTestApproved:
		if order.IsPaid() {
			return false, nil
		}
		paidAt := s.now()
		if err := s.orderRepo.MarkPaid(ctx, order.ID, payment.ID, paidAt); err != nil {
			return false, err
		}
		order.Status = model.OrderStatusCompleted
		order.PaymentRef = payment.ID
		order.PaidAt = &paidAt
		s.note(ctx, order.ID, fmt.Sprintf("SpaceRemit payment completed (%s). Payment ID: %s", label, payment.ID))
		return true, nil

	case model.TagPending:
		if order.Status == model.OrderStatusOnHold {
			return false, nil
		}
		return s.transition(ctx, order, model.OrderStatusOnHold, label, payment.ID)

	case model.TagProcessing:
		if order.Status == model.OrderStatusProcessing {
			return false, nil
		}
		return s.transition(ctx, order, model.OrderStatusProcessing, label, payment.ID)

	case model.TagFailed:
		if order.Status == model.OrderStatusFailed {
			return false, nil
		}
		return s.transition(ctx, order, model.OrderStatusFailed, label, payment.ID)

	case model.TagRefused, model.TagExpired:
		if order.Status == model.OrderStatusCancelled {
			return false, nil
		}
		return s.transition(ctx, order, model.OrderStatusCancelled, label, payment.ID)

	default:
		s.logger.Warn().
			Str("status_tag", string(payment.StatusTag)).
			Uint64("order_id", order.ID).
			Msg("unknown status tag received")
		return false, nil
	}
}

func (s *reconcileService) transition(ctx context.Context, order *model.Order, status model.OrderStatus, label, paymentID string) (bool, error) {
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, status); err != nil {
		return false, err
	}
	order.Status = status
	s.note(ctx, order.ID, fmt.Sprintf("SpaceRemit payment %s (%s). Payment ID: %s", status, label, paymentID))
	return true, nil
}

// note appends an order note; note failures never fail the reconciliation.
func (s *reconcileService) note(ctx context.Context, orderID uint64, note string) {
	if err := s.orderRepo.AddNote(ctx, orderID, note); err != nil {
		s.logger.Warn().Err(err).Uint64("order_id", orderID).Msg("failed to add order note")
	}
}

// upsertTransaction creates the transaction row on first sighting and
// refreshes status, tag, payload, and updated_at on every accepted
// notification, even when the order-level transition was a no-op, so the
// idempotency window stays accurate.
func (s *reconcileService) upsertTransaction(ctx context.Context, order *model.Order, payment *gateway.PaymentData, rawPayload []byte) error {
	tx, err := s.txRepo.FindByPaymentID(ctx, payment.ID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return err
		}
		tx = &model.Transaction{
			OrderID:       order.ID,
			PaymentID:     payment.ID,
			Amount:        payment.OriginalAmount,
			Currency:      payment.Currency,
			CustomerEmail: order.BillingEmail,
			CustomerName:  order.BillingName,
			PaymentMethod: paymentMethodOrDefault(payment.PaymentMethod),
		}
		if tx.Currency == "" {
			tx.Currency = order.Currency
		}
		if tx.Amount.IsZero() {
			tx.Amount = order.Total
		}
		applyStatusFields(tx, payment, rawPayload)
		return s.txRepo.Create(ctx, tx)
	}

	applyStatusFields(tx, payment, rawPayload)
	return s.txRepo.Update(ctx, tx)
}

func applyStatusFields(tx *model.Transaction, payment *gateway.PaymentData, rawPayload []byte) {
	tx.Status = payment.StatusTag.Internal()
	tx.StatusTag = payment.StatusTag
	if len(rawPayload) > 0 {
		tx.GatewayResponse = datatypes.JSON(rawPayload)
	}
}

func paymentMethodOrDefault(method string) string {
	if method == "" {
		return "spaceremit"
	}
	return method
}
