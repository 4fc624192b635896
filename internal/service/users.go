package service

import (
	"context" // Request scoped operations
	"strings" // Input trimming

	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Claims, hashing, cache and pagination

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// UserService serves profile lookups and edits
type UserService struct {
	DB       *gorm.DB
	Cache    *utils.Cache
	HashCost int
}

// ProfilePatch holds the profile fields a user may change; nil means unchanged
type ProfilePatch struct {
	Username       *string
	Email          *string
	Password       *string
	FirstName      *string
	LastName       *string
	Gender         *string
	PhoneNumber    *string
	AddressStreet  *string
	AddressPin     *string
	AddressCity    *string
	AddressCountry *string
}

// Get returns the full record of a user; the password hash is never serialized
func (s *UserService) Get(ctx context.Context, id uint) (*domain.User, error) {
	key := utils.UserKey(id)
	var user domain.User
	found, err := s.Cache.Get(ctx, key, &user)
	logCacheErr(err, key)
	if found && err == nil {
		return &user, nil
	}
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, lookupErr(err, "user")
	}
	logCacheErr(s.Cache.Set(ctx, key, user), key)
	return &user, nil
}

// List returns a page of users for admins
func (s *UserService) List(ctx context.Context, actor *utils.Claims, page utils.Page) ([]domain.User, int64, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	db := s.DB.WithContext(ctx)
	var total int64 // Total user count
	if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, storageErr(err)
	}
	users := make([]domain.User, 0, page.Size)
	if err := db.Order("id asc").Offset(page.Offset()).Limit(page.Size).Find(&users).Error; err != nil {
		return nil, 0, storageErr(err)
	}
	return users, total, nil
}

// UpdateProfile edits a user's own profile; admins may edit anyone
func (s *UserService) UpdateProfile(ctx context.Context, actor *utils.Claims, id uint, patch ProfilePatch) (*domain.User, error) {
	if err := requireCaller(actor); err != nil {
		return nil, err
	}
	if actor.UserID != id && !actor.Admin {
		return nil, domain.NewError(domain.KindForbidden, "you can only edit your own profile")
	}

	var user domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return lookupErr(err, "user")
		}
		changes, err := s.profileChanges(tx, &user, patch)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(changes).Error; err != nil {
			return storageErr(err)
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, passThrough(err)
	}
	logCacheErr(s.Cache.Delete(ctx, utils.UserKey(id)), utils.UserKey(id))
	logrus.WithFields(logrus.Fields{
		"actor_id": actor.UserID, // Caller
		"user_id":  id,           // Edited user
	}).Info("Profile updated")
	return &user, nil
}

func (s *UserService) profileChanges(tx *gorm.DB, user *domain.User, patch ProfilePatch) (map[string]any, error) {
	changes := map[string]any{}
	username, email := user.Username, user.Email
	if patch.Username != nil {
		username = strings.TrimSpace(*patch.Username)
	}
	if patch.Email != nil {
		email = strings.TrimSpace(*patch.Email)
	}
	if username != user.Username || email != user.Email {
		if err := validateIdentity(username, email); err != nil {
			return nil, err
		}
		taken, err := identityTaken(tx, username, email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.NewError(domain.KindDuplicateIdentity, "this username or email address is already being used")
		}
		changes["username"] = username
		changes["email"] = email
	}
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := utils.HashPassword(*patch.Password, s.HashCost)
		if err != nil {
			return nil, internalErr("cannot hash password", err)
		}
		changes["password"] = hash
	}
	for column, value := range map[string]*string{
		"first_name":      patch.FirstName,
		"last_name":       patch.LastName,
		"gender":          patch.Gender,
		"phone_number":    patch.PhoneNumber,
		"address_street":  patch.AddressStreet,
		"address_pin":     patch.AddressPin,
		"address_city":    patch.AddressCity,
		"address_country": patch.AddressCountry,
	} {
		if value != nil {
			changes[column] = *value
		}
	}
	return changes, nil
}

// AdjustScores adds to a user's game and activity scores and keeps the overall score in sync
func (s *UserService) AdjustScores(ctx context.Context, actor *utils.Claims, id uint, gameDelta, activityDelta int) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var user domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
			"game_score":     gorm.Expr("game_score + ?", gameDelta),
			"activity_score": gorm.Expr("activity_score + ?", activityDelta),
		})
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			if err := tx.First(&user, id).Error; err != nil {
				return lookupErr(err, "user")
			}
		}
		// Separate statement: MySQL evaluates SET assignments left to right
		if err := tx.Model(&domain.User{}).Where("id = ?", id).
			Update("overall_score", gorm.Expr("game_score + activity_score")).Error; err != nil {
			return storageErr(err)
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, passThrough(err)
	}
	logCacheErr(s.Cache.Delete(ctx, utils.UserKey(id)), utils.UserKey(id))
	logrus.WithFields(logrus.Fields{
		"user_id":        id,                // User ID
		"game_delta":     gameDelta,         // Game score change
		"activity_delta": activityDelta,     // Activity score change
		"overall_score":  user.OverallScore, // Resulting overall score
	}).Info("Scores adjusted")
	return &user, nil
}
