package api

import (
	"net/http" // HTTP status codes

	"marketplace/internal/middleware" // Claims and error responses
	"marketplace/internal/service"    // Business operations

	"github.com/gin-gonic/gin" // Gin web framework
)

// ProfileRequest carries the profile fields to change; omitted fields stay as they are
type ProfileRequest struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Password       *string `json:"password"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Gender         *string `json:"gender"`
	PhoneNumber    *string `json:"phone_number"`
	AddressStreet  *string `json:"address_street"`
	AddressPin     *string `json:"address_pin"`
	AddressCity    *string `json:"address_city"`
	AddressCountry *string `json:"address_country"`
}

// GetUserHandler returns the full record to the user themselves and to admins,
// and the public profile to everyone else
func GetUserHandler(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		user, err := users.Get(c.Request.Context(), id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		viewer := service.ViewerFromClaims(middleware.ClaimsFromContext(c))
		if viewer.UserID != user.ID && !viewer.Admin {
			c.JSON(http.StatusOK, user.Public()) // No email, phone, address or wallet
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateProfileHandler edits the caller's profile, or any profile for admins
func UpdateProfileHandler(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ProfileRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.UpdateProfile(c.Request.Context(), middleware.ClaimsFromContext(c), id, service.ProfilePatch{
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
		c.JSON(http.StatusOK, user)
	}
}
