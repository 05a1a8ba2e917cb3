package services

import (
	"context"

	"github.com/kendall-kelly/home-services-api/models"
	"gorm.io/gorm"
)

// EligibilityService answers which partners may serve a service in a pincode
type EligibilityService struct {
	db *gorm.DB
}

// NewEligibilityService creates an eligibility resolver backed by db
func NewEligibilityService(db *gorm.DB) *EligibilityService {
	return &EligibilityService{db: db}
}

// eligibleScope restricts a partners query to approved, active partners
// with an active capability edge for the service and an active area edge
// for the pincode. All three conditions are evaluated in one statement.
func eligibleScope(serviceID uint, pincode string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("partners.approved = ? AND partners.is_active = ?", true, true).
			Where("EXISTS (SELECT 1 FROM service_providers sp WHERE sp.partner_id = partners.id AND sp.service_id = ? AND sp.is_active = ?)", serviceID, true).
			Where("EXISTS (SELECT 1 FROM partner_pincodes pp WHERE pp.partner_id = partners.id AND pp.pincode = ? AND pp.is_active = ?)", pincode, true)
	}
}

// FindEligible returns every partner qualified for the service and pincode,
// with their user preloaded for notification addressing.
func (s *EligibilityService) FindEligible(ctx context.Context, serviceID uint, pincode string) ([]models.Partner, error) {
	var partners []models.Partner
	err := s.db.WithContext(ctx).
		Model(&models.Partner{}).
		Scopes(eligibleScope(serviceID, pincode)).
		Preload("User").
		Order("partners.id").
		Find(&partners).Error
	if err != nil {
		return nil, classifyDBError(err)
	}
	return partners, nil
}

// IsEligible re-checks a single partner against the same rule
func (s *EligibilityService) IsEligible(ctx context.Context, partnerID, serviceID uint, pincode string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Partner{}).
		Scopes(eligibleScope(serviceID, pincode)).
		Where("partners.id = ?", partnerID).
		Count(&count).Error
	if err != nil {
		return false, classifyDBError(err)
	}
	return count > 0, nil
}
