package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
	"github.com/google/uuid"       // Token IDs
)

// Purpose separates session tokens from password reset tokens
type Purpose string

// Token purposes
const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "password-reset"
)

// Token errors
var (
	ErrWrongPurpose = errors.New("token purpose mismatch")         // Token presented for the wrong use
	ErrEmptySecret  = errors.New("token secret is not configured") // HMAC key missing
)

// JWT Claims
type Claims struct {
	UserID      uint    `json:"user_id"`      // Custom claim for user ID
	Username    string  `json:"username"`     // Username at issue time
	Admin       bool    `json:"admin"`        // Admin flag at issue time
	Purpose     Purpose `json:"purpose"`      // session or password-reset
	Fingerprint string  `json:"fp,omitempty"` // Password hash fingerprint, reset tokens only
	jwt.RegisteredClaims
}

// TokenManager signs and verifies tokens with one key per purpose
type TokenManager struct {
	sessionSecret []byte
	resetSecret   []byte
	sessionTTL    time.Duration
	resetTTL      time.Duration
	now           func() time.Time
}

// NewTokenManager creates a manager; the two secrets must differ
func NewTokenManager(sessionSecret, resetSecret string, sessionTTL, resetTTL time.Duration) *TokenManager {
	return &TokenManager{
		sessionSecret: []byte(sessionSecret),
		resetSecret:   []byte(resetSecret),
		sessionTTL:    sessionTTL,
		resetTTL:      resetTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// IssueSession creates a session token for a user
func (m *TokenManager) IssueSession(userID uint, username string, admin bool) (string, time.Time, error) {
	claims := Claims{UserID: userID, Username: username, Admin: admin, Purpose: PurposeSession}
	return m.sign(claims, m.sessionSecret, m.sessionTTL)
}

// IssueReset creates a password reset token bound to the current password hash fingerprint
func (m *TokenManager) IssueReset(userID uint, username, fingerprint string) (string, time.Time, error) {
	claims := Claims{UserID: userID, Username: username, Purpose: PurposeReset, Fingerprint: fingerprint}
	return m.sign(claims, m.resetSecret, m.resetTTL)
}

// ParseSession validates a session token
func (m *TokenManager) ParseSession(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.sessionSecret, PurposeSession)
}

// ParseReset validates a password reset token
func (m *TokenManager) ParseReset(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.resetSecret, PurposeReset)
}

func (m *TokenManager) sign(claims Claims, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, ErrEmptySecret
	}
	now := m.now()
	exp := now.Add(ttl)
	// Standard claims
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(exp), // Token expiry
		IssuedAt:  jwt.NewNumericDate(now), // Issued at current time
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	signed, err := token.SignedString(secret)                  // Sign the token with the secret
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *TokenManager) parse(tokenStr string, secret []byte, purpose Purpose) (*Claims, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return secret, nil // Return the secret key for validation
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	// Check for parsing errors
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
