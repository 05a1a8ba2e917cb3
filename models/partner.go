package models

import (
	"time"
)

// Partner is a service provider who accepts and fulfils orders
type Partner struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name           string     `gorm:"not null" json:"name"`
	Phone          string     `json:"phone"`
	Approved       bool       `gorm:"not null" json:"approved"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	ServiceSummary string     `json:"service_summary"` // free-text service area summary
	LastActiveAt   *time.Time `json:"last_active_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the Partner model
func (Partner) TableName() string {
	return "partners"
}

// ServiceProvider records that a partner can perform a service.
// Rows are deactivated, never deleted.
type ServiceProvider struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PartnerID uint      `gorm:"not null;uniqueIndex:idx_service_providers_pair" json:"partner_id"`
	ServiceID uint      `gorm:"not null;uniqueIndex:idx_service_providers_pair;index" json:"service_id"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the ServiceProvider model
func (ServiceProvider) TableName() string {
	return "service_providers"
}

// PartnerPincode records that a partner serves a postal area.
// Rows are deactivated, never deleted.
type PartnerPincode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PartnerID uint      `gorm:"not null;uniqueIndex:idx_partner_pincodes_pair" json:"partner_id"`
	Pincode   string    `gorm:"not null;size:6;uniqueIndex:idx_partner_pincodes_pair;index" json:"pincode"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the PartnerPincode model
func (PartnerPincode) TableName() string {
	return "partner_pincodes"
}
