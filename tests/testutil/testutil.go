package testutil

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test and fails if it cannot be set.
// Use this in TestMain or suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if err := os.Setenv("GO_ENV", "test"); err != nil {
		t.Fatalf("Failed to set GO_ENV=test: %v", err)
	}
	if os.Getenv("GO_ENV") != "test" {
		t.Fatal("Failed to verify GO_ENV=test")
	}
}

// SetupTestDB opens a fresh in-memory sqlite database with every table migrated.
// The pool is pinned to one connection so the database survives between
// queries and transactions serialise the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// CreateCustomer inserts a USER with a wallet whose ledger holds balance as a signup bonus
func CreateCustomer(t *testing.T, db *gorm.DB, auth0ID string, balance decimal.Decimal) *models.User {
	t.Helper()
	return createUserWithWallet(t, db, auth0ID, models.RoleUser, balance)
}

// CreatePartner inserts an approved, active PARTNER able to serve serviceID in pincode
func CreatePartner(t *testing.T, db *gorm.DB, auth0ID string, serviceID uint, pincode string) *models.Partner {
	t.Helper()

	user := createUserWithWallet(t, db, auth0ID, models.RolePartner, decimal.Zero)
	partner := models.Partner{
		UserID:   user.ID,
		Name:     user.Name,
		Phone:    "9876543210",
		Approved: true,
		IsActive: true,
	}
	require.NoError(t, db.Create(&partner).Error)
	require.NoError(t, db.Create(&models.ServiceProvider{PartnerID: partner.ID, ServiceID: serviceID, IsActive: true}).Error)
	require.NoError(t, db.Create(&models.PartnerPincode{PartnerID: partner.ID, Pincode: pincode, IsActive: true}).Error)

	partner.User = user
	return &partner
}

// CreateAdmin inserts an ADMIN user
func CreateAdmin(t *testing.T, db *gorm.DB, auth0ID string) *models.User {
	t.Helper()
	return createUserWithWallet(t, db, auth0ID, models.RoleAdmin, decimal.Zero)
}

// CreateService inserts an active service with the given price and threshold hours
func CreateService(t *testing.T, db *gorm.DB, name string, price decimal.Decimal, thresholdHours int) *models.Service {
	t.Helper()

	service := models.Service{
		Name:     name,
		Category: "home",
		Price:    price,
		IsActive: true,
	}
	if thresholdHours > 0 {
		service.Threshold = &thresholdHours
	}
	require.NoError(t, db.Create(&service).Error)
	return &service
}

// FutureSlot returns a bookable date and time two days from now at 10:00 in loc
func FutureSlot(loc *time.Location) (string, string) {
	day := time.Now().In(loc).AddDate(0, 0, 2)
	return day.Format("2006-01-02"), "10:00"
}

func createUserWithWallet(t *testing.T, db *gorm.DB, auth0ID, role string, balance decimal.Decimal) *models.User {
	t.Helper()

	handle := strings.NewReplacer("|", "_", "@", "_").Replace(auth0ID)
	user := models.User{
		Auth0ID:      auth0ID,
		Name:         "Test " + handle,
		Email:        handle + "@example.com",
		Role:         role,
		ReferralCode: strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]),
	}
	require.NoError(t, db.Create(&user).Error)

	wallet := models.Wallet{UserID: user.ID, Balance: balance}
	require.NoError(t, db.Create(&wallet).Error)
	if balance.IsPositive() {
		require.NoError(t, db.Create(&models.Transaction{
			WalletID: wallet.ID,
			UserID:   user.ID,
			Amount:   balance,
			Type:     models.TransactionSignupBonus,
		}).Error)
	}
	return &user
}
