package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/kendall-kelly/home-services-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService registers accounts and serves profiles
type UserService struct {
	db            *gorm.DB
	wallets       *WalletService
	userInfo      UserInfoProvider
	signupBonus   decimal.Decimal
	referralBonus decimal.Decimal
}

// NewUserService creates a user service
func NewUserService(db *gorm.DB, wallets *WalletService, userInfo UserInfoProvider, signupBonus, referralBonus decimal.Decimal) *UserService {
	return &UserService{
		db:            db,
		wallets:       wallets,
		userInfo:      userInfo,
		signupBonus:   signupBonus,
		referralBonus: referralBonus,
	}
}

// RegisterInput is a registration request from an authenticated caller
type RegisterInput struct {
	Auth0ID      string
	AccessToken  string
	Role         string
	ReferralCode string
	Phone        string
}

// RegisterResult is everything created by a registration
type RegisterResult struct {
	User    *models.User    `json:"user"`
	Wallet  *models.Wallet  `json:"wallet"`
	Partner *models.Partner `json:"partner,omitempty"`
}

// Register creates the user with a wallet holding the signup bonus. A valid
// referral code also credits the referrer. Partners get an unapproved
// profile that an admin must approve before they receive orders.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if in.Auth0ID == "" {
		return nil, NewAppError(ErrUnauthorized, "UNAUTHORIZED", "Authentication required")
	}

	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RolePartner {
		return nil, validationError("role must be USER or PARTNER")
	}
	if role == models.RolePartner && in.Phone != "" && !utils.ValidatePhone(in.Phone) {
		return nil, validationError("phone must be a 10 digit mobile number")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("auth0_id = ?", in.Auth0ID).Count(&existing).Error; err != nil {
		return nil, classifyDBError(err)
	}
	if existing > 0 {
		return nil, conflictError("USER_EXISTS", "A user with this Auth0 ID already exists")
	}

	info, err := s.userInfo.GetUserInfo(ctx, in.AccessToken)
	if err != nil {
		return nil, &AppError{Kind: ErrUnavailable, Code: "IDENTITY_PROVIDER_ERROR", Message: "Failed to fetch user information from the identity provider", Err: err}
	}
	if info.Email == "" {
		return nil, NewAppError(ErrValidation, "MISSING_EMAIL", "Email not provided by the identity provider")
	}
	if info.Name == "" {
		return nil, NewAppError(ErrValidation, "MISSING_NAME", "Name not provided by the identity provider")
	}

	var referrer *models.User
	if code := strings.ToUpper(strings.TrimSpace(in.ReferralCode)); code != "" {
		var u models.User
		if err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NewAppError(ErrValidation, "INVALID_REFERRAL_CODE", "Referral code not recognised")
			}
			return nil, classifyDBError(err)
		}
		referrer = &u
	}

	result := &RegisterResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Auth0ID:      in.Auth0ID,
			Name:         info.Name,
			Email:        info.Email,
			Role:         role,
			ReferralCode: newReferralCode(),
		}
		if referrer != nil {
			user.ReferredByID = &referrer.ID
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		result.User = &user

		wallet, err := s.wallets.openWallet(ctx, tx, user.ID, s.signupBonus)
		if err != nil {
			return err
		}
		result.Wallet = wallet

		if referrer != nil && s.referralBonus.IsPositive() {
			var referrerWallet models.Wallet
			if err := tx.Where("user_id = ?", referrer.ID).First(&referrerWallet).Error; err != nil {
				return err
			}
			if err := s.wallets.credit(ctx, tx, &referrerWallet, s.referralBonus, models.TransactionReferralBonus, "Referral bonus for inviting "+user.Name); err != nil {
				return err
			}
		}

		if role == models.RolePartner {
			partner := models.Partner{
				UserID:   user.ID,
				Name:     user.Name,
				Phone:    in.Phone,
				Approved: false,
				IsActive: true,
			}
			if err := tx.Create(&partner).Error; err != nil {
				return err
			}
			result.Partner = &partner
		}
		return nil
	})
	if err != nil {
		err = classifyDBError(err)
		if errors.Is(err, ErrConflict) {
			return nil, conflictError("USER_EXISTS", "A user with this Auth0 ID or email already exists")
		}
		return nil, err
	}

	logger.Log.Info("User registered",
		zap.Uint("user_id", result.User.ID),
		zap.String("role", role),
		zap.Bool("referred", referrer != nil),
	)
	return result, nil
}

// GetProfile returns the caller's user record
func (s *UserService) GetProfile(ctx context.Context, p Principal) (*models.User, error) {
	if p.Auth0ID == "" {
		return nil, NewAppError(ErrUnauthorized, "UNAUTHORIZED", "Authentication required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("auth0_id = ?", p.Auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		}
		return nil, classifyDBError(err)
	}
	return &user, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// UpdateProfile changes the caller's display name. Partners keep their
// partner profile name in step with it.
func (s *UserService) UpdateProfile(ctx context.Context, p Principal, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}

	user, err := s.GetProfile(ctx, p)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("name", name).Error; err != nil {
			return err
		}
		if user.Role == models.RolePartner {
			return tx.Model(&models.Partner{}).Where("user_id = ?", user.ID).Update("name", name).Error
		}
		return nil
	})
	if err != nil {
		return nil, classifyDBError(err)
	}

	user.Name = name
	return user, nil
}
