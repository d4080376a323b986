package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/gateway"
	"spaceremit/internal/model"
	"spaceremit/internal/repository"
)

// AdminService backs the operator API: transaction browsing, manual rechecks,
// and gateway connectivity probes.
type AdminService interface {
	ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, int64, error)
	GetTransaction(ctx context.Context, id uint64) (*model.Transaction, error)
	RecheckTransaction(ctx context.Context, id uint64) (*Outcome, error)
	Stats(ctx context.Context) (map[model.InternalStatus]int64, error)
	TestConnection(ctx context.Context) error
}

type adminService struct {
	txRepo     repository.TransactionRepository
	orderRepo  repository.OrderRepository
	client     *gateway.Client
	verifier   *gateway.Verifier
	reconciler ReconcileService
	logger     zerolog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(
	txRepo repository.TransactionRepository,
	orderRepo repository.OrderRepository,
	client *gateway.Client,
	verifier *gateway.Verifier,
	reconciler ReconcileService,
	logger zerolog.Logger,
) AdminService {
	return &adminService{
		txRepo:     txRepo,
		orderRepo:  orderRepo,
		client:     client,
		verifier:   verifier,
		reconciler: reconciler,
		logger:     logger.With().Str("component", "admin").Logger(),
	}
}

// ListTransactions returns a filtered page of transactions.
func (s *adminService) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, int64, error) {
	return s.txRepo.List(ctx, filter)
}

// GetTransaction returns one transaction with its stored gateway payload.
func (s *adminService) GetTransaction(ctx context.Context, id uint64) (*model.Transaction, error) {
	tx, err := s.txRepo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// RecheckTransaction re-verifies a payment against the gateway and runs the
// result through the reconciliation engine, the same path the webhooks use.
func (s *adminService) RecheckTransaction(ctx context.Context, id uint64) (*Outcome, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByID(ctx, tx.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}

	payment, err := s.verifier.CheckPayment(ctx, tx.PaymentID, gateway.Expected{})
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(payment.Raw)
	s.logger.Info().Uint64("transaction_id", id).Str("payment_id", tx.PaymentID).Msg("manual payment recheck")
	return s.reconciler.Apply(ctx, order, payment, raw)
}

// Stats returns transaction counts grouped by internal status.
func (s *adminService) Stats(ctx context.Context) (map[model.InternalStatus]int64, error) {
	return s.txRepo.CountByStatus(ctx)
}

// TestConnection probes the gateway with a connection-test request in the
// currently configured mode.
func (s *adminService) TestConnection(ctx context.Context) error {
	_, err := s.client.Send(ctx, map[string]interface{}{
		"test_connection": true,
		"timestamp":       time.Now().Unix(),
	})
	return err
}
