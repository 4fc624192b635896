package middleware

import (
	"time" // Request latency

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// RequestLogger logs one structured line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		entry := logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,           // HTTP method
			"path":      c.Request.URL.Path,         // Request path
			"status":    status,                     // Response status
			"latency":   time.Since(start).String(), // Handling time
			"client_ip": c.ClientIP(),               // Caller address
		})
		if userID, ok := c.Get(UserIDKey); ok {
			entry = entry.WithField("user_id", userID)
		}
		switch {
		case status >= 500:
			entry.Error("Request")
		case status >= 400:
			entry.Warn("Request")
		default:
			entry.Info("Request")
		}
	}
}
