package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact money arithmetic
)

// User Model
type User struct {
	ID             uint            `gorm:"primaryKey" json:"id"`                         // Primary key
	Username       string          `gorm:"size:64;uniqueIndex;not null" json:"username"` // Unique username
	Email          string          `gorm:"size:255;uniqueIndex;not null" json:"email"`   // Unique email
	Password       string          `gorm:"not null" json:"-"`                            // Hashed password, never serialized
	Admin          bool            `gorm:"not null" json:"admin"`                        // Admin flag
	Wallet         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"wallet"`    // Wallet balance, never negative
	FirstName      string          `gorm:"size:100" json:"first_name"`                   // Profile fields
	LastName       string          `gorm:"size:100" json:"last_name"`
	Gender         string          `gorm:"size:32" json:"gender"`
	PhoneNumber    string          `gorm:"size:32" json:"phone_number"`
	AddressStreet  string          `gorm:"size:255" json:"address_street"`
	AddressPin     string          `gorm:"size:32" json:"address_pin"`
	AddressCity    string          `gorm:"size:100" json:"address_city"`
	AddressCountry string          `gorm:"size:100" json:"address_country"`
	GameScore      int             `gorm:"not null" json:"game_score"`     // Cumulative game score
	ActivityScore  int             `gorm:"not null" json:"activity_score"` // Cumulative activity score
	OverallScore   int             `gorm:"not null" json:"overall_score"`  // Always GameScore + ActivityScore
	CreatedAt      time.Time       `json:"created_at"`                     // Creation timestamp
	UpdatedAt      time.Time       `json:"updated_at"`                     // Last update timestamp
}

// PublicProfile is what other users and anonymous visitors see of a user
type PublicProfile struct {
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	GameScore     int       `json:"game_score"`
	ActivityScore int       `json:"activity_score"`
	OverallScore  int       `json:"overall_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public strips contact details, address and wallet
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		GameScore:     u.GameScore,
		ActivityScore: u.ActivityScore,
		OverallScore:  u.OverallScore,
		CreatedAt:     u.CreatedAt,
	}
}
