package service

import (
	"context"       // Request scoped operations
	"errors"        // errors.Is for record lookups
	"io"            // Image streams
	"os"            // Image files
	"path/filepath" // Image paths
	"strings"       // Input trimming

	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Claims, cache and pagination

	"github.com/google/uuid"        // Stored image names
	"github.com/shopspring/decimal" // Prices
	"github.com/sirupsen/logrus"    // Logrus for structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// ProductService manages listings, approval and images
type ProductService struct {
	DB        *gorm.DB
	Cache     *utils.Cache
	UploadDir string // Directory that receives product images
}

// ProductInput is a new listing
type ProductInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Location    string
	Delivery    bool
	Available   *bool // Defaults to true
}

// ProductPatch holds the fields to change; nil means unchanged
type ProductPatch struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Location    *string
	Delivery    *bool
	Available   *bool
}

// Create lists a new product owned by the caller; it stays hidden until an admin approves it
func (s *ProductService) Create(ctx context.Context, actor *utils.Claims, in ProductInput) (*domain.Product, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "product name is required")
	}
	if !in.Price.IsPositive() {
		return nil, domain.NewError(domain.KindInvalidInput, "price must be positive")
	}
	available := true
	if in.Available != nil {
		available = *in.Available
	}
	product := domain.Product{
		SellerID:    actor.UserID,
		Name:        in.Name,
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Location:    strings.TrimSpace(in.Location),
		Delivery:    in.Delivery,
		Available:   available,
		Images:      []domain.ProductImage{},
	}
	if err := s.DB.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, storageErr(err)
	}
	logrus.WithFields(logrus.Fields{
		"product_id": product.ID,       // Product ID
		"seller_id":  product.SellerID, // Owner
	}).Info("Product created")
	return &product, nil
}

// Update edits a listing; sellers' edits send it back to the approval queue
func (s *ProductService) Update(ctx context.Context, actor *utils.Claims, id uint, patch ProductPatch) (*domain.Product, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	var product domain.Product
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwned(tx, actor, id, &product); err != nil {
			return err
		}
		if product.Sold() {
			return domain.NewError(domain.KindConflict, "product already sold")
		}
		changes, err := productChanges(patch)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if !actor.Admin {
			changes["approved"] = false
		}
		// Guarded on buyer_id so a concurrent confirm is never overwritten
		res := tx.Model(&domain.Product{}).Where("id = ? AND buyer_id IS NULL", id).Updates(changes)
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindConflict, "product already sold")
		}
		return tx.Preload("Images").First(&product, id).Error
	})
	if err != nil {
		return nil, passThrough(err)
	}
	s.invalidate(ctx, id)
	logrus.WithFields(logrus.Fields{
		"product_id": id,           // Product ID
		"actor_id":   actor.UserID, // Caller
	}).Info("Product updated")
	return &product, nil
}

func productChanges(patch ProductPatch) (map[string]any, error) {
	changes := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.NewError(domain.KindInvalidInput, "product name is required")
		}
		changes["name"] = name
	}
	if patch.Price != nil {
		if !patch.Price.IsPositive() {
			return nil, domain.NewError(domain.KindInvalidInput, "price must be positive")
		}
		changes["price"] = *patch.Price
	}
	if patch.Description != nil {
		changes["description"] = *patch.Description
	}
	if patch.Category != nil {
		changes["category"] = strings.TrimSpace(*patch.Category)
	}
	if patch.Location != nil {
		changes["location"] = strings.TrimSpace(*patch.Location)
	}
	if patch.Delivery != nil {
		changes["delivery"] = *patch.Delivery
	}
	if patch.Available != nil {
		changes["available"] = *patch.Available
	}
	return changes, nil
}

// Delete removes a listing and its images; not allowed while a purchase is pending
func (s *ProductService) Delete(ctx context.Context, actor *utils.Claims, id uint) error {
	if err := requireCaller(actor); err != nil {
		return err
	}
	var product domain.Product
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwned(tx, actor, id, &product); err != nil {
			return err
		}
		if product.Pending {
			return domain.NewError(domain.KindConflict, "product has a pending transaction")
		}
		if err := tx.Where("product_id = ?", id).Delete(&domain.ProductImage{}).Error; err != nil {
			return storageErr(err)
		}
		res := tx.Where("id = ? AND pending = ?", id, false).Delete(&domain.Product{})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindConflict, "product has a pending transaction")
		}
		return nil
	})
	if err != nil {
		return passThrough(err)
	}
	for _, img := range product.Images {
		if err := os.Remove(filepath.Join(s.UploadDir, img.FileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithFields(logrus.Fields{
				"file":  img.FileName, // Stored file
				"error": err.Error(),  // Error message
			}).Warn("Could not remove product image")
		}
	}
	s.invalidate(ctx, id)
	logrus.WithFields(logrus.Fields{
		"product_id": id,           // Product ID
		"actor_id":   actor.UserID, // Caller
	}).Info("Product deleted")
	return nil
}

// Approve makes a listing public; approving twice is a no-op
func (s *ProductService) Approve(ctx context.Context, actor *utils.Claims, id uint) (*domain.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var product domain.Product
	if err := db.Preload("Images").First(&product, id).Error; err != nil {
		return nil, lookupErr(err, "product")
	}
	if !product.Approved {
		if err := db.Model(&product).Update("approved", true).Error; err != nil {
			return nil, storageErr(err)
		}
		product.Approved = true
	}
	s.invalidate(ctx, id)
	logrus.WithFields(logrus.Fields{
		"product_id": id,           // Product ID
		"admin_id":   actor.UserID, // Approving admin
	}).Info("Product approved")
	return &product, nil
}

// Get returns one product; unapproved listings are only visible to their owner and admins
func (s *ProductService) Get(ctx context.Context, v Viewer, id uint) (*domain.Product, error) {
	key := utils.ProductKey(id)
	var product domain.Product
	found, err := s.Cache.Get(ctx, key, &product)
	logCacheErr(err, key)
	if !found || err != nil {
		if err := s.DB.WithContext(ctx).Preload("Images").First(&product, id).Error; err != nil {
			return nil, lookupErr(err, "product")
		}
		logCacheErr(s.Cache.Set(ctx, key, product), key)
	}
	if !product.Approved && !v.Admin && product.SellerID != v.UserID {
		return nil, domain.NewError(domain.KindNotFound, "product not found")
	}
	return &product, nil
}

// Search returns a page of products matching f that v may see
func (s *ProductService) Search(ctx context.Context, v Viewer, f ProductFilter, page utils.Page) ([]domain.Product, int64, error) {
	if f.OnlyUnapproved && !v.Admin {
		return nil, 0, domain.NewError(domain.KindForbidden, "not an admin")
	}
	base := func() *gorm.DB {
		q := s.DB.WithContext(ctx).Model(&domain.Product{})
		return f.Apply(visibleTo(q, v))
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, storageErr(err)
	}
	products := make([]domain.Product, 0, page.Size)
	err := base().Preload("Images").
		Order("created_at desc").Order("id desc").
		Offset(page.Offset()).Limit(page.Size).
		Find(&products).Error
	if err != nil {
		return nil, 0, storageErr(err)
	}
	return products, total, nil
}

// ListByCategory is Search restricted to one category
func (s *ProductService) ListByCategory(ctx context.Context, v Viewer, category string, page utils.Page) ([]domain.Product, int64, error) {
	return s.Search(ctx, v, ProductFilter{Category: &category}, page)
}

// imageExtensions maps accepted content types to the extension files are stored under
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AddImage stores an uploaded image for a product owned by the caller
func (s *ProductService) AddImage(ctx context.Context, actor *utils.Claims, productID uint, originalName, contentType string, r io.Reader) (*domain.ProductImage, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, domain.NewError(domain.KindInvalidInput, "only png, jpeg, gif and webp images are accepted")
	}
	var product domain.Product
	if err := s.loadOwned(s.DB.WithContext(ctx), actor, productID, &product); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		return nil, storageErr(err)
	}
	name := uuid.NewString() + ext // The file server derives Content-Type from this extension
	path := filepath.Join(s.UploadDir, name)
	if err := writeFile(path, r); err != nil {
		return nil, storageErr(err)
	}
	img := domain.ProductImage{
		ProductID:    productID,
		FileName:     name,
		OriginalName: filepath.Base(originalName),
		ContentType:  contentType,
	}
	if err := s.DB.WithContext(ctx).Create(&img).Error; err != nil {
		_ = os.Remove(path)
		return nil, storageErr(err)
	}
	s.invalidate(ctx, productID)
	logrus.WithFields(logrus.Fields{
		"product_id": productID, // Product ID
		"file":       name,      // Stored file
	}).Info("Product image stored")
	return &img, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// loadOwned loads a product and checks that the caller owns it or is an admin
func (s *ProductService) loadOwned(db *gorm.DB, actor *utils.Claims, id uint, product *domain.Product) error {
	if err := db.Preload("Images").First(product, id).Error; err != nil {
		return lookupErr(err, "product")
	}
	if product.SellerID != actor.UserID && !actor.Admin {
		return domain.NewError(domain.KindForbidden, "you do not own this product")
	}
	return nil
}

func (s *ProductService) invalidate(ctx context.Context, id uint) {
	key := utils.ProductKey(id)
	logCacheErr(s.Cache.Delete(ctx, key), key)
}
