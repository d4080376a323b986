package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"spaceremit/internal/model"
)

// OrderRepository defines the order persistence operations the reconciliation
// core needs from the store. It is the interface boundary to the commerce
// platform's order model.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint64) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uint64, status model.OrderStatus) error
	// MarkPaid records payment collection exactly once: the write only lands
	// on a row whose paid_at is still NULL, so concurrent confirmations
	// cannot double-apply.
	MarkPaid(ctx context.Context, id uint64, paymentRef string, paidAt time.Time) error
	AddNote(ctx context.Context, orderID uint64, note string) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create creates a new order.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID finds an order by ID.
func (r *orderRepository) FindByID(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus updates the lifecycle status of an order.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uint64, status model.OrderStatus) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MarkPaid marks an order as paid and attaches the payment reference.
func (r *orderRepository) MarkPaid(ctx context.Context, id uint64, paymentRef string, paidAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND paid_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":      model.OrderStatusCompleted,
			"payment_ref": paymentRef,
			"paid_at":     paidAt,
		}).Error
}

// AddNote appends an audit note to an order.
func (r *orderRepository) AddNote(ctx context.Context, orderID uint64, note string) error {
	return r.db.WithContext(ctx).Create(&model.OrderNote{
		OrderID: orderID,
		Note:    note,
	}).Error
}
