package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact money arithmetic
)

// TransactionStatus is the lifecycle state of a purchase
type TransactionStatus string

// Pending is the only non-terminal state
const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusDeclined  TransactionStatus = "declined"
)

// Transaction Model
type Transaction struct {
	ID              uint              `gorm:"primaryKey" json:"id"`                       // Primary key
	ProductID       uint              `gorm:"index;not null" json:"product_id"`           // Product being bought
	BuyerID         uint              `gorm:"index;not null" json:"buyer_id"`             // Buyer user
	SellerID        uint              `gorm:"index;not null" json:"seller_id"`            // Seller user
	Status          TransactionStatus `gorm:"size:16;index;not null" json:"status"`       // pending, confirmed or declined
	Amount          decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`  // Price captured at initiation
	DeliveryAddress string            `gorm:"size:255" json:"delivery_address,omitempty"` // Where to ship, if delivered
	CreatedAt       time.Time         `json:"created_at"`                                 // Creation timestamp
	UpdatedAt       time.Time         `json:"updated_at"`                                 // Last transition timestamp
}
