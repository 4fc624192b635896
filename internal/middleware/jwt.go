package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"marketplace/internal/utils" // Token claims

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by the auth middlewares
const (
	ClaimsKey = "claims"
	UserIDKey = "userID"
)

// TokenVerifier validates session tokens
type TokenVerifier interface {
	VerifySessionToken(token string) (*utils.Claims, error)
}

// bearerToken extracts the token from the Authorization header
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization") // Get Authorization header
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), true
}

// JWTAuthMiddleware validates session tokens and stores the claims in the context
func JWTAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		// Check if the Authorization header is present and properly formatted
		if !ok {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header", "kind": "unauthorized"})
			return
		}
		claims, err := verifier.VerifySessionToken(tokenStr) // Parse the JWT token
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(ClaimsKey, claims)        // Store claims in context
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Next()                        // Proceed to the next handler
	}
}

// OptionalJWTMiddleware stores claims when a token is presented; anonymous requests pass through
func OptionalJWTMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		claims, err := verifier.VerifySessionToken(tokenStr)
		if err != nil {
			// A presented but bad token is an error, not an anonymous visit
			AbortWithError(c, err)
			return
		}
		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// ClaimsFromContext returns the caller's claims, or nil for anonymous requests
func ClaimsFromContext(c *gin.Context) *utils.Claims {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
