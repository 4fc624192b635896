package api

import (
	"net/http" // HTTP status codes

	"marketplace/internal/domain"     // Failure kinds
	"marketplace/internal/middleware" // Error responses
	"marketplace/internal/service"    // Business operations

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Request struct for registration
type RegisterRequest struct {
	Username       string `json:"username" binding:"required"` // Username must be provided
	Email          string `json:"email" binding:"required"`    // Email must be provided
	Password       string `json:"password" binding:"required"` // Password must be provided
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	PhoneNumber    string `json:"phone_number"`
	AddressStreet  string `json:"address_street"`
	AddressPin     string `json:"address_pin"`
	AddressCity    string `json:"address_city"`
	AddressCountry string `json:"address_country"`
}

// Request struct for login; Login is a username or an email
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`    // Username or email
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Request struct for a password reset mail
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// Request struct for setting a new password with a reset token
type RestorePasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// bindJSON binds the request body or answers 400
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondError(c, domain.Wrap(domain.KindInvalidInput, "Invalid request", err))
		return false
	}
	return true
}

// RegisterHandler creates a new user account
func RegisterHandler(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		user, err := auth.Register(c.Request.Context(), service.RegisterInput{
			Username:       req.Username,
			Email:          req.Email,
			Password:       req.Password,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Gender:         req.Gender,
			PhoneNumber:    req.PhoneNumber,
			AddressStreet:  req.AddressStreet,
			AddressPin:     req.AddressPin,
			AddressCity:    req.AddressCity,
			AddressCountry: req.AddressCountry,
		})
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		// Return the public user record
		c.JSON(http.StatusCreated, user)
	}
}

// LoginHandler authenticates a user and returns a session token
func LoginHandler(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		res, err := auth.Authenticate(c.Request.Context(), req.Login, req.Password)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, res)
	}
}

// ForgotPasswordHandler mails a reset link. Unknown addresses get the same answer as known ones.
func ForgotPasswordHandler(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		err := auth.IssuePasswordResetToken(c.Request.Context(), req.Email)
		if err != nil && domain.KindOf(err) != domain.KindNotFound {
			middleware.RespondError(c, err)
			return
		}
		if err != nil {
			logrus.WithField("email", req.Email).Info("Password reset requested for unknown email")
		}
		c.JSON(http.StatusOK, gin.H{"message": "If the address is registered, a reset link is on its way"})
	}
}

// RestorePasswordHandler sets a new password from a reset token
func RestorePasswordHandler(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RestorePasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := auth.RestorePassword(c.Request.Context(), req.Token, req.Password); err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}
