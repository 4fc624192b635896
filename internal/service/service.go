// Package service holds the marketplace business rules: authentication, user management,
// product listings and the purchase transaction state machine. Every failure returned from this
// package is a *domain.Error.
package service

import (
	"errors" // errors.Is for record lookups

	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Claims

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// storageErr wraps an unexpected store failure
func storageErr(err error) error {
	return domain.Wrap(domain.KindStorageUnavailable, "storage unavailable", err)
}

// internalErr wraps a failure of our own machinery, such as hashing or signing
func internalErr(message string, err error) error {
	return domain.Wrap(domain.KindInternal, message, err)
}

// lookupErr maps a failed single-record lookup to NotFound or StorageUnavailable
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewError(domain.KindNotFound, what+" not found")
	}
	return storageErr(err)
}

// passThrough keeps typed failures and wraps everything else as a storage failure
func passThrough(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return storageErr(err)
}

// requireAdmin fails with Forbidden unless the claims carry the admin flag
func requireAdmin(claims *utils.Claims) error {
	if claims == nil || !claims.Admin {
		return domain.NewError(domain.KindForbidden, "not an admin")
	}
	return nil
}

// requireCaller fails with Unauthorized when no authenticated caller is present
func requireCaller(claims *utils.Claims) error {
	if claims == nil || claims.UserID == 0 {
		return domain.NewError(domain.KindUnauthorized, "authentication required")
	}
	return nil
}

// Viewer is who is looking at products; the zero value is an anonymous visitor
type Viewer struct {
	UserID uint
	Admin  bool
}

// ViewerFromClaims builds a viewer from optional session claims
func ViewerFromClaims(claims *utils.Claims) Viewer {
	if claims == nil {
		return Viewer{}
	}
	return Viewer{UserID: claims.UserID, Admin: claims.Admin}
}

// logCacheErr records a cache failure; the store stays authoritative
func logCacheErr(err error, key string) {
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   key,         // Cache key
			"error": err.Error(), // Error message
		}).Warn("cache operation failed")
	}
}
