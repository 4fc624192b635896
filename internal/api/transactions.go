package api

import (
	"context"  // Request scoped operations
	"net/http" // HTTP status codes

	"marketplace/internal/domain"     // Transaction statuses
	"marketplace/internal/middleware" // Claims and error responses
	"marketplace/internal/service"    // Business operations
	"marketplace/internal/utils"      // Session claims

	"github.com/gin-gonic/gin" // Gin web framework
)

// InitiateRequest starts a purchase
type InitiateRequest struct {
	ProductID       uint   `json:"product_id" binding:"required"` // Product to buy
	DeliveryAddress string `json:"delivery_address"`              // Where to ship, if delivered
}

// InitiateTransactionHandler opens a pending purchase for the caller
func InitiateTransactionHandler(engine *service.TransactionEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitiateRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		claims := middleware.ClaimsFromContext(c)
		t, err := engine.Initiate(c.Request.Context(), claims.UserID, req.ProductID, req.DeliveryAddress)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// ConfirmTransactionHandler lets the seller accept a pending purchase
func ConfirmTransactionHandler(engine *service.TransactionEngine) gin.HandlerFunc {
	return answerHandler(engine.Confirm)
}

// DeclineTransactionHandler lets the seller or an admin reject a pending purchase
func DeclineTransactionHandler(engine *service.TransactionEngine) gin.HandlerFunc {
	return answerHandler(engine.Decline)
}

type answerFunc = func(ctx context.Context, actor *utils.Claims, transactionID uint) (*domain.Transaction, error)

func answerHandler(answer answerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		t, err := answer(c.Request.Context(), middleware.ClaimsFromContext(c), id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// GetTransactionHandler returns one transaction to its buyer, seller or an admin
func GetTransactionHandler(engine *service.TransactionEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		t, err := engine.Get(c.Request.Context(), middleware.ClaimsFromContext(c), id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// ListTransactionsHandler returns the caller's transactions, filtered by ?role= and ?status=
func ListTransactionsHandler(engine *service.TransactionEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.ClaimsFromContext(c)
		page := pageQuery(c)
		filter := service.TransactionFilter{
			Role:   c.Query("role"),
			Status: domain.TransactionStatus(c.Query("status")),
		}
		list, total, err := engine.ListForUser(c.Request.Context(), claims.UserID, filter, page)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged("transactions", list, page, total))
	}
}
