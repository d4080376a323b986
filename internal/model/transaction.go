package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Transaction is the persisted record of one SpaceRemit payment attempt.
// Exactly one row exists per payment reference; repeated notifications update
// the same row. Status is derived from StatusTag by the status mapper and is
// never written from any other path.
type Transaction struct {
	ID            uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID       uint64          `json:"order_id" gorm:"not null;index"`
	PaymentID     string          `json:"payment_id" gorm:"column:spaceremit_payment_id;type:varchar(255);not null;uniqueIndex"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3);not null"`
	Status        InternalStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	StatusTag     StatusTag       `json:"status_tag" gorm:"type:varchar(5);not null"`
	CustomerEmail string          `json:"customer_email" gorm:"type:varchar(100)"`
	CustomerName  string          `json:"customer_name" gorm:"type:varchar(255)"`
	PaymentMethod string          `json:"payment_method" gorm:"type:varchar(50)"`
	// GatewayResponse holds the last raw gateway notification for idempotency
	// comparison and audit.
	GatewayResponse datatypes.JSON `json:"gateway_response,omitempty" gorm:"type:json"`
	CreatedAt       time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName keeps the table name the plugin's schema used.
func (Transaction) TableName() string {
	return "spaceremit_transactions"
}
