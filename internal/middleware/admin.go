package middleware

import (
	"net/http" // HTTP status codes

	"marketplace/internal/utils" // Token claims

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminGate decides whether claims carry admin rights
type AdminGate interface {
	RequireAdmin(claims *utils.Claims) error
}

// AdminOnlyMiddleware lets only admins through; it must run after JWTAuthMiddleware
func AdminOnlyMiddleware(gate AdminGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c) // Get claims from context
		// Check if claims exist in context
		if claims == nil {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "kind": "unauthorized"})
			return
		}
		// Check the admin flag
		if err := gate.RequireAdmin(claims); err != nil {
			AbortWithError(c, err)
			return
		}
		// If admin, proceed to the next handler
		c.Next()
	}
}
