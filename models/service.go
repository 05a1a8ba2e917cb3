package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultThresholdHours applies when a service has no threshold configured
const DefaultThresholdHours = 2

// Service is a bookable catalog item
type Service struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Category       string          `gorm:"index" json:"category"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Threshold      *int            `json:"threshold"` // hours of advance notice, nil means default
	NumberOfOrders int             `gorm:"not null" json:"number_of_orders"`
	IsActive       bool            `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Service model
func (Service) TableName() string {
	return "services"
}

// ThresholdDuration returns the advance-notice window for the service.
// A nil or non-positive threshold falls back to DefaultThresholdHours.
func (s *Service) ThresholdDuration() time.Duration {
	hours := DefaultThresholdHours
	if s != nil && s.Threshold != nil && *s.Threshold > 0 {
		hours = *s.Threshold
	}
	return time.Duration(hours) * time.Hour
}
