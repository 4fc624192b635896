package api

import (
	"net/http" // HTTP status codes

	"marketplace/internal/middleware" // Claims and error responses
	"marketplace/internal/service"    // Business operations

	"github.com/gin-gonic/gin" // Gin web framework
)

// ScoresRequest adds deltas to a user's scores
type ScoresRequest struct {
	GameDelta     int `json:"game_delta"`     // Added to the game score
	ActivityDelta int `json:"activity_delta"` // Added to the activity score
}

// ListUsersHandler returns a page of users
func ListUsersHandler(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		list, total, err := users.List(c.Request.Context(), middleware.ClaimsFromContext(c), page)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged("users", list, page, total))
	}
}

// DeleteUserHandler removes a user; deleting a missing id is not an error
func DeleteUserHandler(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		outcome, err := auth.DeleteUser(c.Request.Context(), middleware.ClaimsFromContext(c), id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": outcome == service.Deleted})
	}
}

// PromoteUserHandler grants admin rights
func PromoteUserHandler(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		user, err := auth.PromoteToAdmin(c.Request.Context(), middleware.ClaimsFromContext(c), id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// AdjustScoresHandler adds to a user's game and activity scores
func AdjustScoresHandler(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ScoresRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.AdjustScores(c.Request.Context(), middleware.ClaimsFromContext(c), id, req.GameDelta, req.ActivityDelta)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// ApproveProductHandler publishes a listing
func ApproveProductHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		product, err := products.Approve(c.Request.Context(), middleware.ClaimsFromContext(c), id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// UnapprovedProductsHandler lists the approval queue
func UnapprovedProductsHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		viewer := service.ViewerFromClaims(middleware.ClaimsFromContext(c))
		list, total, err := products.Search(c.Request.Context(), viewer, service.ProductFilter{OnlyUnapproved: true}, page)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged("products", list, page, total))
	}
}
