package service

import (
	"strings" // LIKE pattern escaping

	"github.com/shopspring/decimal" // Price bounds
	"gorm.io/gorm"                  // GORM ORM library
)

// ProductFilter narrows a product search; every non-nil field is ANDed
type ProductFilter struct {
	Name           *string          // Case-insensitive substring of the name
	PriceMin       *decimal.Decimal // Inclusive lower bound
	PriceMax       *decimal.Decimal // Inclusive upper bound
	Location       *string          // Case-insensitive substring of the location
	Delivery       *bool            // Exact delivery flag
	Available      *bool            // Exact availability flag
	Category       *string          // Exact category
	SellerID       *uint            // Listings of one seller
	OnlyUnapproved bool             // Admin approval queue
}

// Apply adds one predicate per present field to q
func (f ProductFilter) Apply(q *gorm.DB) *gorm.DB {
	if f.Name != nil && *f.Name != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", containsPattern(*f.Name))
	}
	q = priceRange(q, f.PriceMin, f.PriceMax)
	if f.Location != nil && *f.Location != "" {
		q = q.Where("LOWER(location) LIKE ? ESCAPE '!'", containsPattern(*f.Location))
	}
	if f.Delivery != nil {
		q = q.Where("delivery = ?", *f.Delivery)
	}
	if f.Available != nil {
		q = q.Where("available = ?", *f.Available)
	}
	if f.Category != nil && *f.Category != "" {
		q = q.Where("category = ?", *f.Category)
	}
	if f.SellerID != nil {
		q = q.Where("seller_id = ?", *f.SellerID)
	}
	if f.OnlyUnapproved {
		q = q.Where("approved = ?", false)
	}
	return q
}

// priceRange collapses to >= min, <= max, BETWEEN, or nothing
func priceRange(q *gorm.DB, lo, hi *decimal.Decimal) *gorm.DB {
	switch {
	case lo != nil && hi != nil:
		return q.Where("price BETWEEN ? AND ?", *lo, *hi)
	case lo != nil:
		return q.Where("price >= ?", *lo)
	case hi != nil:
		return q.Where("price <= ?", *hi)
	}
	return q
}

// visibleTo restricts products to what v may see: approved ones, plus own listings, or all for admins
func visibleTo(q *gorm.DB, v Viewer) *gorm.DB {
	switch {
	case v.Admin:
		return q
	case v.UserID != 0:
		return q.Where("(approved = ? OR seller_id = ?)", true, v.UserID)
	}
	return q.Where("approved = ?", true)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
