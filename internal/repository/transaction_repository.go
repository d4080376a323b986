package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"spaceremit/internal/model"
)

// TransactionFilter narrows admin transaction listings.
type TransactionFilter struct {
	Status  model.InternalStatus
	Search  string // matches payment id or customer email
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// TransactionRepository defines transaction persistence operations.
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	Update(ctx context.Context, tx *model.Transaction) error
	FindByID(ctx context.Context, id uint64) (*model.Transaction, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int64, error)
	CountByStatus(ctx context.Context) (map[model.InternalStatus]int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create creates a new transaction record.
func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// Update updates an existing transaction record.
func (r *transactionRepository) Update(ctx context.Context, tx *model.Transaction) error {
	return r.db.WithContext(ctx).Save(tx).Error
}

// FindByID finds a transaction by surrogate key.
func (r *transactionRepository) FindByID(ctx context.Context, id uint64) (*model.Transaction, error) {
	var tx model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindByPaymentID finds a transaction by its SpaceRemit payment reference.
func (r *transactionRepository) FindByPaymentID(ctx context.Context, paymentID string) (*model.Transaction, error) {
	var tx model.Transaction
	if err := r.db.WithContext(ctx).Where("spaceremit_payment_id = ?", paymentID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// List returns a filtered, paginated page of transactions plus the total count.
func (r *transactionRepository) List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaction{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("spaceremit_payment_id LIKE ? OR customer_email LIKE ?", like, like)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var txs []model.Transaction
	if err := q.Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// CountByStatus returns transaction counts grouped by internal status.
func (r *transactionRepository) CountByStatus(ctx context.Context) (map[model.InternalStatus]int64, error) {
	type row struct {
		Status model.InternalStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[model.InternalStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}
