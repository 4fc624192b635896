package middleware

import (
	"net/http" // HTTP status codes

	"marketplace/internal/domain" // Failure kinds

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// StatusFor maps a failure kind to its HTTP status
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput, domain.KindInvalidCredentials, domain.KindInvalidOperation, domain.KindInsufficientFunds:
		return http.StatusBadRequest
	case domain.KindUnauthorized, domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDuplicateIdentity, domain.KindConflict:
		return http.StatusConflict
	case domain.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindDeliveryFailed:
		return http.StatusBadGateway
	case domain.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method, // HTTP method
			"path":   c.FullPath(),     // Route
			"error":  err.Error(),      // Full error, cause included
		}).Error("Request failed")
	}
	if kind == "" {
		kind = "internal"
	}
	return status, gin.H{"error": domain.MessageOf(err), "kind": kind}
}

// RespondError writes err as {"error", "kind"} with the matching status
func RespondError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.JSON(status, body)
}

// AbortWithError is RespondError for middlewares
func AbortWithError(c *gin.Context, err error) {
	status, body := errorBody(c, err)
	c.AbortWithStatusJSON(status, body)
}
