package service

import (
	"context"  // Request scoped operations
	"errors"   // errors.Is for record lookups
	"fmt"      // Mail body formatting
	"net/mail" // Email validation
	"net/url"  // Reset link building
	"strings"  // Input trimming
	"time"     // Token expiry

	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/events" // Transaction events
	"marketplace/internal/mailer" // Mail delivery
	"marketplace/internal/utils"  // Tokens, hashing and cache

	"github.com/shopspring/decimal" // Wallet balance
	"github.com/sirupsen/logrus"    // Logrus for structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// AuthService registers and authenticates users and gates admin operations
type AuthService struct {
	DB             *gorm.DB
	Tokens         *utils.TokenManager
	Mailer         mailer.Mailer
	Cache          *utils.Cache
	Events         events.Publisher // Declines caused by account deletion, optional
	StartingWallet decimal.Decimal  // Wallet of a freshly registered user
	HashCost       int              // bcrypt cost
	ResetURL       string           // Frontend page that accepts ?token=
}

// RegisterInput is a registration candidate
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Gender         string
	PhoneNumber    string
	AddressStreet  string
	AddressPin     string
	AddressCity    string
	AddressCountry string
}

// LoginResult pairs a session token with the public user record
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

// DeleteOutcome distinguishes an actual deletion from a no-op
type DeleteOutcome int

// Outcomes of DeleteUser
const (
	Deleted DeleteOutcome = iota + 1
	NothingToDelete
)

// Register creates a non-admin user with the starting wallet
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateIdentity(in.Username, in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	// Single combined lookup on either unique field
	taken, err := identityTaken(db, in.Username, in.Email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.NewError(domain.KindDuplicateIdentity, "this username or email address is already being used")
	}

	hash, err := utils.HashPassword(in.Password, s.HashCost)
	if err != nil {
		return nil, internalErr("cannot hash password", err)
	}
	user := domain.User{
		Username:       in.Username,
		Email:          in.Email,
		Password:       hash,
		Wallet:         s.StartingWallet,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Gender:         in.Gender,
		PhoneNumber:    in.PhoneNumber,
		AddressStreet:  in.AddressStreet,
		AddressPin:     in.AddressPin,
		AddressCity:    in.AddressCity,
		AddressCountry: in.AddressCountry,
	}
	if err := db.Create(&user).Error; err != nil {
		// A concurrent registration can win between the lookup and the insert
		if taken, lookupErr := identityTaken(db, in.Username, in.Email, 0); lookupErr == nil && taken {
			return nil, domain.NewError(domain.KindDuplicateIdentity, "this username or email address is already being used")
		}
		return nil, storageErr(err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,       // User ID
		"username": user.Username, // Username
	}).Info("User registered")
	return &user, nil
}

// Authenticate checks credentials given a username or an email and issues a session token
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*LoginResult, error) {
	var user domain.User
	err := s.DB.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		First(&user).Error
	if err != nil {
		return nil, lookupErr(err, "user")
	}
	// Compare provided password with stored hash
	if !utils.CheckPassword(user.Password, password) {
		logrus.WithField("user_id", user.ID).Warn("Login failed: wrong password")
		return nil, domain.NewError(domain.KindInvalidCredentials, "wrong password")
	}
	token, exp, err := s.Tokens.IssueSession(user.ID, user.Username, user.Admin)
	if err != nil {
		return nil, internalErr("cannot issue token", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

// VerifySessionToken returns the claims of a valid, unexpired session token
func (s *AuthService) VerifySessionToken(token string) (*utils.Claims, error) {
	claims, err := s.Tokens.ParseSession(token)
	if err != nil {
		return nil, domain.Wrap(domain.KindUnauthorized, "invalid or expired token", err)
	}
	return claims, nil
}

// RequireAdmin fails with Forbidden when the caller is not an admin
func (s *AuthService) RequireAdmin(claims *utils.Claims) error {
	return requireAdmin(claims)
}

// IssuePasswordResetToken mails a reset link to the owner of email
func (s *AuthService) IssuePasswordResetToken(ctx context.Context, email string) error {
	var user domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).First(&user).Error; err != nil {
		return lookupErr(err, "user")
	}
	token, exp, err := s.Tokens.IssueReset(user.ID, user.Username, utils.PasswordFingerprint(user.Password))
	if err != nil {
		return internalErr("cannot issue token", err)
	}
	body := s.resetMailBody(user.Username, token, exp)
	if err := s.Mailer.Send(ctx, user.Email, "Restore your password", body); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,     // User ID
			"error":   err.Error(), // Error message
		}).Error("Password reset mail failed")
		return domain.Wrap(domain.KindDeliveryFailed, "could not send the reset mail", err)
	}
	logrus.WithField("user_id", user.ID).Info("Password reset mail sent")
	return nil
}

func (s *AuthService) resetMailBody(username, token string, exp time.Time) string {
	link := s.ResetURL + "?token=" + url.QueryEscape(token)
	return fmt.Sprintf("Hello %s,\n\nuse the link below to choose a new password:\n\n%s\n\nThe link is valid until %s and works once.\n",
		username, link, exp.UTC().Format(time.RFC1123))
}

// RestorePassword sets a new password using a reset token; the token stops working once used
func (s *AuthService) RestorePassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.Tokens.ParseReset(resetToken)
	if err != nil {
		return domain.Wrap(domain.KindUnauthorized, "invalid or expired reset token", err)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	var user domain.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewError(domain.KindUnauthorized, "invalid or expired reset token")
		}
		return storageErr(err)
	}
	if utils.PasswordFingerprint(user.Password) != claims.Fingerprint {
		return domain.NewError(domain.KindUnauthorized, "reset token already used")
	}
	hash, err := utils.HashPassword(newPassword, s.HashCost)
	if err != nil {
		return internalErr("cannot hash password", err)
	}
	// Conditional on the old hash so two concurrent restores cannot both succeed
	res := db.Model(&domain.User{}).
		Where("id = ? AND password = ?", user.ID, user.Password).
		Update("password", hash)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewError(domain.KindUnauthorized, "reset token already used")
	}
	logrus.WithField("user_id", user.ID).Info("Password restored")
	return nil
}

// PromoteToAdmin grants the admin flag; promoting an admin again is a no-op
func (s *AuthService) PromoteToAdmin(ctx context.Context, actor *utils.Claims, targetID uint) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var user domain.User
	if err := db.First(&user, targetID).Error; err != nil {
		return nil, lookupErr(err, "user")
	}
	if !user.Admin {
		if err := db.Model(&user).Update("admin", true).Error; err != nil {
			return nil, storageErr(err)
		}
		user.Admin = true
	}
	logCacheErr(s.Cache.Delete(ctx, utils.UserKey(user.ID)), utils.UserKey(user.ID))
	logrus.WithFields(logrus.Fields{
		"actor_id":  actor.UserID, // Admin performing the change
		"target_id": user.ID,      // Promoted user
	}).Info("User promoted to admin")
	return &user, nil
}

// DeleteUser removes a user; a missing id yields NothingToDelete rather than an error.
// In the same database transaction the user's pending purchases and sales are declined and the
// user's unsold products are withdrawn from sale, so nothing is left waiting on an absent party.
func (s *AuthService) DeleteUser(ctx context.Context, actor *utils.Claims, targetID uint) (DeleteOutcome, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	var declined []domain.Transaction // Pending transactions the user was party to
	var withdrawn []uint              // Unsold products of the user
	outcome := Deleted
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.User{}, targetID)
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			outcome = NothingToDelete
			return nil
		}
		if err := tx.Where("status = ? AND (seller_id = ? OR buyer_id = ?)", domain.StatusPending, targetID, targetID).
			Find(&declined).Error; err != nil {
			return storageErr(err)
		}
		if len(declined) > 0 {
			ids := make([]uint, 0, len(declined))
			productIDs := make([]uint, 0, len(declined))
			for i := range declined {
				ids = append(ids, declined[i].ID)
				productIDs = append(productIDs, declined[i].ProductID)
				declined[i].Status = domain.StatusDeclined
			}
			if err := tx.Model(&domain.Transaction{}).
				Where("id IN ? AND status = ?", ids, domain.StatusPending).
				Update("status", domain.StatusDeclined).Error; err != nil {
				return storageErr(err)
			}
			if err := tx.Model(&domain.Product{}).
				Where("id IN ? AND buyer_id IS NULL", productIDs).
				Update("pending", false).Error; err != nil {
				return storageErr(err)
			}
		}
		// Unsold listings go off sale; sold ones stay as the buyers' purchase history
		if err := tx.Model(&domain.Product{}).
			Where("seller_id = ? AND buyer_id IS NULL", targetID).
			Pluck("id", &withdrawn).Error; err != nil {
			return storageErr(err)
		}
		if len(withdrawn) > 0 {
			if err := tx.Model(&domain.Product{}).
				Where("id IN ?", withdrawn).
				Updates(map[string]any{"approved": false, "available": false}).Error; err != nil {
				return storageErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, passThrough(err)
	}
	if outcome == NothingToDelete {
		return NothingToDelete, nil
	}

	keys := []string{utils.UserKey(targetID)}
	for _, id := range withdrawn {
		keys = append(keys, utils.ProductKey(id))
	}
	for i := range declined {
		keys = append(keys, utils.ProductKey(declined[i].ProductID))
	}
	logCacheErr(s.Cache.Delete(ctx, keys...), strings.Join(keys, ","))
	for i := range declined {
		s.publish(ctx, events.TypeTransactionDeclined, &declined[i])
	}
	logrus.WithFields(logrus.Fields{
		"actor_id":  actor.UserID,   // Admin performing the deletion
		"target_id": targetID,       // Deleted user
		"declined":  len(declined),  // Pending transactions declined
		"withdrawn": len(withdrawn), // Products taken off sale
	}).Info("User deleted")
	return Deleted, nil
}

func (s *AuthService) publish(ctx context.Context, eventType string, t *domain.Transaction) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.NewTransactionEvent(eventType, t)); err != nil {
		logrus.WithFields(logrus.Fields{
			"type":           eventType,   // Event type
			"transaction_id": t.ID,        // Transaction ID
			"error":          err.Error(), // Error message
		}).Error("Publishing transaction event failed")
	}
}

// identityTaken reports whether another user (id != exceptID) holds username or email.
// Both values are checked against both columns, so nobody can register a username equal to
// someone else's email address and capture their logins.
func identityTaken(db *gorm.DB, username, email string, exceptID uint) (bool, error) {
	var count int64
	both := []string{username, email}
	q := db.Model(&domain.User{}).Where("(username IN ? OR email IN ?)", both, both)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, storageErr(err)
	}
	return count > 0, nil
}

func validateIdentity(username, email string) error {
	if username == "" || email == "" {
		return domain.NewError(domain.KindInvalidInput, "username and email are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.NewError(domain.KindInvalidInput, "invalid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return domain.NewError(domain.KindInvalidInput, "password is required")
	}
	if len(password) > utils.MaxPasswordBytes {
		return domain.NewError(domain.KindInvalidInput, "password is too long")
	}
	return nil
}
