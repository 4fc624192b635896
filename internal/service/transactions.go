package service

import (
	"context" // Request scoped operations
	"strings" // Input trimming

	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/events" // Transaction events
	"marketplace/internal/utils"  // Claims, cache and pagination

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// TransactionEngine runs the purchase lifecycle: a buyer initiates, the seller confirms or declines.
// Admins may decline on the seller's behalf.
//
// Every transition is a single gorm transaction whose writes are conditional on the expected prior
// state (status = pending, pending = false, buyer_id IS NULL, wallet >= amount). A caller that loses
// a race therefore sees Conflict or InsufficientFunds and the whole unit is rolled back.
type TransactionEngine struct {
	DB     *gorm.DB
	Cache  *utils.Cache
	Events events.Publisher
}

// TransactionFilter narrows ListForUser
type TransactionFilter struct {
	Role   string                   // "buyer", "seller" or "" for both
	Status domain.TransactionStatus // "" for any
}

// Initiate opens a pending purchase of productID by buyerID at the current price
func (e *TransactionEngine) Initiate(ctx context.Context, buyerID, productID uint, deliveryAddress string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		if err := tx.First(&product, productID).Error; err != nil {
			return lookupErr(err, "product")
		}
		if product.Sold() {
			return domain.NewError(domain.KindConflict, "product already sold")
		}
		if product.Pending {
			return domain.NewError(domain.KindConflict, "product already has a pending transaction")
		}
		if product.SellerID == buyerID {
			return domain.NewError(domain.KindInvalidOperation, "you cannot buy your own product")
		}
		if !product.Approved || !product.Available {
			return domain.NewError(domain.KindInvalidOperation, "product is not for sale")
		}
		var buyer, seller domain.User
		if err := tx.Select("id").First(&buyer, buyerID).Error; err != nil {
			return lookupErr(err, "buyer")
		}
		if err := tx.Select("id").First(&seller, product.SellerID).Error; err != nil {
			return lookupErr(err, "seller")
		}
		// Claim the product; only one concurrent initiate can flip the flag
		res := tx.Model(&domain.Product{}).
			Where("id = ? AND pending = ? AND buyer_id IS NULL", productID, false).
			Update("pending", true)
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindConflict, "product already has a pending transaction")
		}
		t = domain.Transaction{
			ProductID:       product.ID,
			BuyerID:         buyerID,
			SellerID:        product.SellerID,
			Status:          domain.StatusPending,
			Amount:          product.Price, // Price fixed at initiation
			DeliveryAddress: strings.TrimSpace(deliveryAddress),
		}
		if err := tx.Create(&t).Error; err != nil {
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		e.logFailure("initiate", err, logrus.Fields{"buyer_id": buyerID, "product_id": productID})
		return nil, passThrough(err)
	}
	e.invalidate(ctx, []string{utils.ProductKey(productID)})
	e.publish(ctx, events.TypeTransactionInitiated, &t)
	return &t, nil
}

// Confirm settles a pending transaction: the buyer pays the captured amount to the seller and
// becomes the product's buyer. Only the seller may confirm. Nothing changes unless every step succeeds.
func (e *TransactionEngine) Confirm(ctx context.Context, actor *utils.Claims, transactionID uint) (*domain.Transaction, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	var t domain.Transaction
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.loadPending(tx, actor, false, transactionID, &t); err != nil {
			return err
		}
		var buyer domain.User
		if err := tx.Select("id").First(&buyer, t.BuyerID).Error; err != nil {
			return lookupErr(err, "buyer")
		}
		if err := transition(tx, &t, domain.StatusConfirmed); err != nil {
			return err
		}
		// Debit buyer
		res := tx.Model(&domain.User{}).
			Where("id = ? AND wallet >= ?", t.BuyerID, t.Amount).
			Update("wallet", gorm.Expr("wallet - ?", t.Amount))
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindInsufficientFunds, "buyer has insufficient funds")
		}
		// Credit seller
		res = tx.Model(&domain.User{}).
			Where("id = ?", t.SellerID).
			Update("wallet", gorm.Expr("wallet + ?", t.Amount))
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindNotFound, "seller not found")
		}
		// Hand the product over
		res = tx.Model(&domain.Product{}).
			Where("id = ? AND buyer_id IS NULL", t.ProductID).
			Updates(map[string]any{"buyer_id": t.BuyerID, "pending": false, "available": false})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewError(domain.KindConflict, "product already sold")
		}
		return nil
	})
	if err != nil {
		e.logFailure("confirm", err, logrus.Fields{"actor_id": actor.UserID, "transaction_id": transactionID})
		return nil, passThrough(err)
	}
	e.invalidate(ctx, []string{utils.ProductKey(t.ProductID), utils.UserKey(t.BuyerID), utils.UserKey(t.SellerID)})
	logrus.WithFields(logrus.Fields{
		"transaction_id": t.ID,              // Transaction ID
		"product_id":     t.ProductID,       // Product ID
		"buyer_id":       t.BuyerID,         // Buyer
		"seller_id":      t.SellerID,        // Seller
		"amount":         t.Amount.String(), // Settled amount
	}).Info("Transaction confirmed")
	e.publish(ctx, events.TypeTransactionConfirmed, &t)
	return &t, nil
}

// Decline rejects a pending transaction and frees the product for another buyer.
// The seller or an admin may decline.
func (e *TransactionEngine) Decline(ctx context.Context, actor *utils.Claims, transactionID uint) (*domain.Transaction, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	var t domain.Transaction
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.loadPending(tx, actor, true, transactionID, &t); err != nil {
			return err
		}
		if err := transition(tx, &t, domain.StatusDeclined); err != nil {
			return err
		}
		return tx.Model(&domain.Product{}).
			Where("id = ? AND buyer_id IS NULL", t.ProductID).
			Update("pending", false).Error
	})
	if err != nil {
		e.logFailure("decline", err, logrus.Fields{"actor_id": actor.UserID, "transaction_id": transactionID})
		return nil, passThrough(err)
	}
	e.invalidate(ctx, []string{utils.ProductKey(t.ProductID)})
	logrus.WithFields(logrus.Fields{
		"transaction_id": t.ID,         // Transaction ID
		"product_id":     t.ProductID,  // Product ID
		"actor_id":       actor.UserID, // Seller or admin
	}).Info("Transaction declined")
	e.publish(ctx, events.TypeTransactionDeclined, &t)
	return &t, nil
}

// Get returns a transaction visible to its buyer, its seller or an admin
func (e *TransactionEngine) Get(ctx context.Context, actor *utils.Claims, id uint) (*domain.Transaction, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	var t domain.Transaction
	if err := e.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, lookupErr(err, "transaction")
	}
	if !actor.Admin && t.BuyerID != actor.UserID && t.SellerID != actor.UserID {
		return nil, domain.NewError(domain.KindForbidden, "not a party to this transaction")
	}
	return &t, nil
}

// ListForUser returns a page of the user's transactions, newest first
func (e *TransactionEngine) ListForUser(ctx context.Context, userID uint, f TransactionFilter, page utils.Page) ([]domain.Transaction, int64, error) {
	base := func() *gorm.DB {
		q := e.DB.WithContext(ctx).Model(&domain.Transaction{})
		switch f.Role {
		case "buyer":
			q = q.Where("buyer_id = ?", userID)
		case "seller":
			q = q.Where("seller_id = ?", userID)
		case "":
			q = q.Where("(buyer_id = ? OR seller_id = ?)", userID, userID)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		return q
	}
	switch f.Role {
	case "", "buyer", "seller":
	default:
		return nil, 0, domain.NewError(domain.KindInvalidInput, "role must be buyer or seller")
	}
	switch f.Status {
	case "", domain.StatusPending, domain.StatusConfirmed, domain.StatusDeclined:
	default:
		return nil, 0, domain.NewError(domain.KindInvalidInput, "unknown transaction status")
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, storageErr(err)
	}
	txs := make([]domain.Transaction, 0, page.Size)
	if err := base().Order("created_at desc").Order("id desc").
		Offset(page.Offset()).Limit(page.Size).Find(&txs).Error; err != nil {
		return nil, 0, storageErr(err)
	}
	return txs, total, nil
}

// loadPending applies the guards shared by confirm and decline; adminMay lets admins through
func (e *TransactionEngine) loadPending(tx *gorm.DB, actor *utils.Claims, adminMay bool, transactionID uint, t *domain.Transaction) error {
	if err := tx.First(t, transactionID).Error; err != nil {
		return lookupErr(err, "transaction")
	}
	if t.SellerID != actor.UserID && !(adminMay && actor.Admin) {
		return domain.NewError(domain.KindForbidden, "only the seller can answer this transaction")
	}
	if t.Status != domain.StatusPending {
		return domain.NewError(domain.KindConflict, "transaction is already "+string(t.Status))
	}
	return nil
}

// transition moves t out of pending; zero affected rows means another request got there first
func transition(tx *gorm.DB, t *domain.Transaction, to domain.TransactionStatus) error {
	res := tx.Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", t.ID, domain.StatusPending).
		Update("status", to)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewError(domain.KindConflict, "transaction is no longer pending")
	}
	t.Status = to
	return nil
}

func (e *TransactionEngine) publish(ctx context.Context, eventType string, t *domain.Transaction) {
	if e.Events == nil {
		return
	}
	if err := e.Events.Publish(ctx, events.NewTransactionEvent(eventType, t)); err != nil {
		logrus.WithFields(logrus.Fields{
			"type":           eventType,   // Event type
			"transaction_id": t.ID,        // Transaction ID
			"error":          err.Error(), // Error message
		}).Error("Publishing transaction event failed")
	}
}

func (e *TransactionEngine) invalidate(ctx context.Context, keys []string) {
	logCacheErr(e.Cache.Delete(ctx, keys...), strings.Join(keys, ","))
}

func (e *TransactionEngine) logFailure(op string, err error, fields logrus.Fields) {
	fields["op"] = op
	fields["kind"] = domain.KindOf(err)
	fields["error"] = err.Error()
	if domain.KindOf(err) == domain.KindStorageUnavailable || domain.KindOf(err) == "" {
		logrus.WithFields(fields).Error("Transaction operation failed")
		return
	}
	logrus.WithFields(fields).Warn("Transaction operation rejected")
}
