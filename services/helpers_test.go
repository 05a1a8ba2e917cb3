package services

import (
	"strings"
	"sync"
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

const testGatewaySecret = "test_secret"

const testPincode = "560001"

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, db *gorm.DB, auth0ID, role string, balance decimal.Decimal) (*models.User, *models.Wallet) {
	t.Helper()

	handle := strings.NewReplacer("|", "_").Replace(auth0ID)
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
	return &user, &wallet
}

func seedService(t *testing.T, db *gorm.DB, price decimal.Decimal) *models.Service {
	t.Helper()
	service := models.Service{Name: "Deep Cleaning", Category: "cleaning", Price: price, IsActive: true}
	require.NoError(t, db.Create(&service).Error)
	return &service
}

func seedPartner(t *testing.T, db *gorm.DB, auth0ID string, serviceID uint, pincode string) *models.Partner {
	t.Helper()

	user, _ := seedUser(t, db, auth0ID, models.RolePartner, decimal.Zero)
	partner := models.Partner{UserID: user.ID, Name: user.Name, Phone: "9876543210", Approved: true, IsActive: true}
	require.NoError(t, db.Create(&partner).Error)
	require.NoError(t, db.Create(&models.ServiceProvider{PartnerID: partner.ID, ServiceID: serviceID, IsActive: true}).Error)
	require.NoError(t, db.Create(&models.PartnerPincode{PartnerID: partner.ID, Pincode: pincode, IsActive: true}).Error)
	partner.User = user
	return &partner
}

func reloadOrder(t *testing.T, db *gorm.DB, id uint) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, id).Error)
	return &order
}

func walletBalance(t *testing.T, db *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var wallet models.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&wallet).Error)
	return wallet.Balance
}

func countDebits(t *testing.T, db *gorm.DB, orderID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("order_id = ? AND type = ?", orderID, models.TransactionDebit).Count(&n).Error)
	return n
}

// recordingNotifier captures what the order flow enqueues
type recordingNotifier struct {
	mu        sync.Mutex
	newOrders []uint
	partners  map[uint]int
	accepted  []uint
	reminders []uint
	accept    bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{partners: make(map[uint]int), accept: true}
}

func (n *recordingNotifier) EnqueueNewOrder(order models.Order, partners []models.Partner) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newOrders = append(n.newOrders, order.ID)
	n.partners[order.ID] = len(partners)
	return n.accept
}

func (n *recordingNotifier) EnqueueAcceptance(order models.Order) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = append(n.accepted, order.ID)
	return n.accept
}

func (n *recordingNotifier) EnqueuePaymentRequested(order models.Order) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, order.ID)
	return n.accept
}

// orderFixture is a fully wired order service over a fresh database with a
// customer, a 499.00 service and one eligible partner.
type orderFixture struct {
	db       *gorm.DB
	svc      *OrderService
	gateway  *MockPaymentGateway
	notifier *recordingNotifier
	blobs    *MockBlobStore
	now      time.Time

	customer *models.User
	service  *models.Service
	partner  *models.Partner

	customerP Principal
	partnerP  Principal
}

func newOrderFixture(t *testing.T, customerBalance decimal.Decimal) *orderFixture {
	t.Helper()

	db := setupServiceDB(t)
	f := &orderFixture{
		db:       db,
		gateway:  NewMockPaymentGateway(testGatewaySecret),
		notifier: newRecordingNotifier(),
		blobs:    NewMockBlobStore(),
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	f.customer, _ = seedUser(t, db, "auth0|customer", models.RoleUser, customerBalance)
	f.service = seedService(t, db, dec("499"))
	f.partner = seedPartner(t, db, "auth0|partner", f.service.ID, testPincode)
	f.customerP = Principal{Auth0ID: f.customer.Auth0ID, Role: models.RoleUser}
	f.partnerP = Principal{Auth0ID: f.partner.User.Auth0ID, Role: models.RolePartner}

	f.svc = NewOrderService(db, OrderDeps{
		Wallets:     NewWalletService(db),
		Eligibility: NewEligibilityService(db),
		Gateway:     f.gateway,
		Notifier:    f.notifier,
		Images:      NewImageService(f.blobs),
	}, OrderSettings{
		Currency:  "INR",
		Location:  time.UTC,
		TxTimeout: 5 * time.Second,
		Now:       func() time.Time { return f.now },
	})
	return f
}

// validInput books the fixture service for the next day at 10:00
func (f *orderFixture) validInput() CreateOrderInput {
	return CreateOrderInput{
		ServiceID: f.service.ID,
		Date:      f.now.AddDate(0, 0, 1).Format("2006-01-02"),
		Time:      "10:00",
		Address:   "12 MG Road, Bengaluru",
		Pincode:   testPincode,
	}
}

func (f *orderFixture) createOrder(t *testing.T) *CreateOrderResult {
	t.Helper()
	result, err := f.svc.CreateOrder(t.Context(), f.customerP, f.validInput())
	require.NoError(t, err)
	return result
}

// payOnline verifies the gateway leg of an order with a valid signature
func (f *orderFixture) payOnline(t *testing.T, order *models.Order, paymentID string) *VerifyPaymentResult {
	t.Helper()
	require.NotNil(t, order.RazorpayOrderID)
	result, err := f.svc.VerifyPayment(t.Context(), f.customerP, VerifyPaymentInput{
		OrderID:           order.ID,
		RazorpayOrderID:   *order.RazorpayOrderID,
		RazorpayPaymentID: paymentID,
		RazorpaySignature: f.gateway.Sign(*order.RazorpayOrderID, paymentID),
	})
	require.NoError(t, err)
	return result
}
