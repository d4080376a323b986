package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus represents the lifecycle state of a store order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is the store order a SpaceRemit payment settles. It stands in for
// the host commerce platform's order entity.
type Order struct {
	ID           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderKey     string          `json:"order_key" gorm:"type:varchar(64);not null;uniqueIndex"`
	Status       OrderStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Total        decimal.Decimal `json:"total" gorm:"type:decimal(10,2);not null"`
	Currency     string          `json:"currency" gorm:"type:varchar(3);not null"`
	BillingName  string          `json:"billing_name" gorm:"type:varchar(255)"`
	BillingEmail string          `json:"billing_email" gorm:"type:varchar(100)"`
	PaymentRef   string          `json:"payment_ref,omitempty" gorm:"type:varchar(255)"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BeforeCreate assigns the order key used as the browser-return security token.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderKey == "" {
		o.OrderKey = "order_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return nil
}

// IsPaid reports whether payment has been collected for the order. Once true
// it is never reverted.
func (o *Order) IsPaid() bool {
	return o.PaidAt != nil
}

// OrderNote is an audit note attached to an order, mirroring the order notes
// the host platform keeps.
type OrderNote struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   uint64    `json:"order_id" gorm:"not null;index"`
	Note      string    `json:"note" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}
