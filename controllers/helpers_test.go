package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/middleware"
	"github.com/kendall-kelly/home-services-api/models"
	"github.com/kendall-kelly/home-services-api/services"
	"github.com/kendall-kelly/home-services-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPincode = "560001"

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's /userinfo endpoint
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 7 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		userInfo, exists := userInfoMap[authHeader[7:]]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
}

// mockAuthMiddleware sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

// apiFixture wires the real services over an in-memory database
type apiFixture struct {
	db         *gorm.DB
	gateway    *services.MockPaymentGateway
	sender     *services.MockEmailSender
	blobs      *services.MockBlobStore
	dispatcher *services.NotificationDispatcher
	wallets    *services.WalletService
	orders     *services.OrderService
	users      *services.UserService
	sweeper    *services.ThresholdSweeper

	service  *models.Service
	customer *models.User
	partner  *models.Partner
}

func newAPIFixture(t *testing.T, customerBalance decimal.Decimal) *apiFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	f := &apiFixture{
		db:      db,
		gateway: services.NewMockPaymentGateway("test_secret"),
		sender:  services.NewMockEmailSender(),
		blobs:   services.NewMockBlobStore(),
		wallets: services.NewWalletService(db),
	}

	f.dispatcher = services.NewNotificationDispatcher(db, f.sender, 1, 16)
	f.dispatcher.Start()
	t.Cleanup(f.dispatcher.Stop)

	f.orders = services.NewOrderService(db, services.OrderDeps{
		Wallets:     f.wallets,
		Eligibility: services.NewEligibilityService(db),
		Gateway:     f.gateway,
		Notifier:    f.dispatcher,
		Images:      services.NewImageService(f.blobs),
	}, services.OrderSettings{
		Currency:  "INR",
		Location:  time.UTC,
		TxTimeout: 5 * time.Second,
	})
	f.users = services.NewUserService(db, f.wallets, nil, decimal.NewFromInt(100), decimal.NewFromInt(50))
	f.sweeper = services.NewThresholdSweeper(db, f.dispatcher, nil)

	f.service = testutil.CreateService(t, db, "Deep Cleaning", decimal.NewFromInt(499), 0)
	f.customer = testutil.CreateCustomer(t, db, "auth0|customer", customerBalance)
	f.partner = testutil.CreatePartner(t, db, "auth0|partner", f.service.ID, testPincode)
	return f
}

// orderBody is a valid booking request for the fixture service
func (f *apiFixture) orderBody() map[string]interface{} {
	date, clock := testutil.FutureSlot(time.UTC)
	return map[string]interface{}{
		"serviceId": f.service.ID,
		"date":      date,
		"time":      clock,
		"address":   "12 MG Road, Bengaluru",
		"pincode":   testPincode,
	}
}

// bookOrder creates an order through the service layer
func (f *apiFixture) bookOrder(t *testing.T) *models.Order {
	t.Helper()
	date, clock := testutil.FutureSlot(time.UTC)
	result, err := f.orders.CreateOrder(t.Context(), services.Principal{Auth0ID: f.customer.Auth0ID, Role: models.RoleUser}, services.CreateOrderInput{
		ServiceID: f.service.ID,
		Date:      date,
		Time:      clock,
		Address:   "12 MG Road, Bengaluru",
		Pincode:   testPincode,
	})
	require.NoError(t, err)
	return result.Order
}

func (f *apiFixture) partnerPrincipal() services.Principal {
	return services.Principal{Auth0ID: f.partner.User.Auth0ID, Role: models.RolePartner}
}

// newJSONRequest builds a request carrying body as JSON
func newJSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// serve runs req through router and decodes the response envelope
func serve(t *testing.T, router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	return w, response
}

// performJSON sends body as JSON and decodes the response envelope
func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return serve(t, router, newJSONRequest(t, method, path, body))
}

func errorCode(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}

func decimalField(t *testing.T, data map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	raw, ok := data[key].(string)
	require.True(t, ok, "%s is %T", key, data[key])
	return decimal.RequireFromString(raw)
}
