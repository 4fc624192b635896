package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact money arithmetic
)

// Product Model
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                       // Primary key
	SellerID    uint            `gorm:"index;not null" json:"seller_id"`            // Owner of the listing
	Name        string          `gorm:"size:255;not null" json:"name"`              // Product name
	Description string          `gorm:"type:text" json:"description"`               // Free text description
	Category    string          `gorm:"size:64;index" json:"category"`              // Exact-match category
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`   // Current asking price
	Location    string          `gorm:"size:255" json:"location"`                   // Where the product is
	Delivery    bool            `gorm:"not null" json:"delivery"`                   // Seller delivers
	Available   bool            `gorm:"not null" json:"available"`                  // Seller offers it for sale
	Approved    bool            `gorm:"not null;index" json:"approved"`             // Set by an admin before public listing
	Pending     bool            `gorm:"not null" json:"pending"`                    // A pending transaction exists
	BuyerID     *uint           `gorm:"index" json:"buyer_id,omitempty"`            // Set once sold
	Images      []ProductImage  `gorm:"constraint:OnDelete:CASCADE;" json:"images"` // Uploaded images
	CreatedAt   time.Time       `json:"created_at"`                                 // Creation timestamp
	UpdatedAt   time.Time       `json:"updated_at"`                                 // Last update timestamp
}

// Sold reports whether the product has a buyer
func (p *Product) Sold() bool { return p.BuyerID != nil }

// ProductImage Model
type ProductImage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`             // Primary key
	ProductID    uint      `gorm:"index;not null" json:"product_id"` // Owning product
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	OriginalName string    `gorm:"size:255" json:"original_name"`
	ContentType  string    `gorm:"size:100" json:"content_type"`
	CreatedAt    time.Time `json:"created_at"`
}
