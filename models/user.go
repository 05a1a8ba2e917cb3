package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles, as carried in the identity token's role claim
const (
	RoleUser    = "USER"
	RolePartner = "PARTNER"
	RoleAdmin   = "ADMIN"
)

// User represents an account in the system (customer, partner or admin)
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Auth0ID      string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	Role         string         `gorm:"not null;default:'USER'" json:"role"`
	ReferralCode string         `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferredByID *uint          `gorm:"index" json:"referred_by_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsValidRole reports whether role is one of the known roles
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RolePartner, RoleAdmin:
		return true
	}
	return false
}
