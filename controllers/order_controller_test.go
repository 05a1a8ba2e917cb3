package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kendall-kelly/home-services-api/models"
	"github.com/kendall-kelly/home-services-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	f := newAPIFixture(t, decimal.NewFromInt(100))
	ctl := NewOrderController(f.orders)

	router := setupTestRouter()
	router.POST("/orders", mockAuthMiddleware(f.customer.Auth0ID, models.RoleUser, "token"), ctl.CreateOrder)

	w, response := performJSON(t, router, http.MethodPost, "/orders", f.orderBody())
	require.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	assert.True(t, response["success"].(bool))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, models.OrderStatusPending, data["status"])
	assert.Equal(t, testPincode, data["pincode"])
	assert.True(t, decimalField(t, data, "amount").Equal(decimal.NewFromInt(499)))
	assert.True(t, decimalField(t, data, "wallet_amount").Equal(decimal.NewFromInt(100)))
	assert.True(t, decimalField(t, data, "remaining_amount").Equal(decimal.NewFromInt(399)))
	assert.NotContains(t, data, "user", "customer record is not echoed")

	meta := response["meta"].(map[string]interface{})
	payment := meta["payment"].(map[string]interface{})
	assert.Equal(t, float64(39900), payment["amount"])
	assert.Equal(t, "INR", payment["currency"])
	assert.Equal(t, "rzp_test_mock", payment["key_id"])
	assert.Equal(t, "order_mock_1", payment["razorpay_order_id"])

	notification := meta["notification"].(map[string]interface{})
	assert.Equal(t, true, notification["queued"])
	assert.Equal(t, float64(1), notification["recipients"])
}

func TestCreateOrder_WalletOnlyHasNoPayment(t *testing.T) {
	f := newAPIFixture(t, decimal.NewFromInt(1000))
	ctl := NewOrderController(f.orders)

	router := setupTestRouter()
	router.POST("/orders", mockAuthMiddleware(f.customer.Auth0ID, models.RoleUser, "token"), ctl.CreateOrder)

	w, response := performJSON(t, router, http.MethodPost, "/orders", f.orderBody())
	require.Equal(t, http.StatusCreated, w.Code)

	data := response["data"].(map[string]interface{})
	assert.Equal(t, models.OrderStatusPaymentCompleted, data["status"])
	assert.Equal(t, models.PaymentModeWallet, data["payment_mode"])
	meta := response["meta"].(map[string]interface{})
	assert.NotContains(t, meta, "payment")
}

func TestCreateOrder_Errors(t *testing.T) {
	f := newAPIFixture(t, decimal.Zero)
	ctl := NewOrderController(f.orders)

	router := setupTestRouter()
	router.POST("/orders", mockAuthMiddleware(f.customer.Auth0ID, models.RoleUser, "token"), ctl.CreateOrder)

	withField := func(key string, value interface{}) map[string]interface{} {
		body := f.orderBody()
		if value == nil {
			delete(body, key)
		} else {
			body[key] = value
		}
		return body
	}

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
		expectedCode   string
	}{
		{"missing address", withField("address", nil), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing service", withField("serviceId", nil), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed pincode", withField("pincode", "56001"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"before opening hours", withField("time", "07:30"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown service", withField("serviceId", 9999), http.StatusNotFound, "SERVICE_NOT_FOUND"},
		{"nobody serves the area", withField("pincode", "394107"), http.StatusUnprocessableEntity, "NO_PROVIDERS_AVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := performJSON(t, router, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			assert.False(t, response["success"].(bool))
			assert.Equal(t, tt.expectedCode, errorCode(response))
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrder_WithoutAuth(t *testing.T) {
	f := newAPIFixture(t, decimal.Zero)
	ctl := NewOrderController(f.orders)

	router := setupTestRouter()
	router.POST("/orders", ctl.CreateOrder)

	w, response := performJSON(t, router, http.MethodPost, "/orders", f.orderBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(response))
}

func TestListMyOrders(t *testing.T) {
	f := newAPIFixture(t, decimal.Zero)
	ctl := NewOrderController(f.orders)
	f.bookOrder(t)
	f.bookOrder(t)

	other := testutil.CreateCustomer(t, f.db, "auth0|other", decimal.Zero)

	router := setupTestRouter()
	router.GET("/mine", mockAuthMiddleware(f.customer.Auth0ID, models.RoleUser, "token"), ctl.ListMyOrders)
	router.GET("/theirs", mockAuthMiddleware(other.Auth0ID, models.RoleUser, "token"), ctl.ListMyOrders)

	w, response := performJSON(t, router, http.MethodGet, "/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["data"].([]interface{}), 2)
	assert.Equal(t, float64(2), response["meta"].(map[string]interface{})["count"])

	w, response = performJSON(t, router, http.MethodGet, "/theirs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, response["data"])
}

func TestGetOrderStatus(t *testing.T) {
	f := newAPIFixture(t, decimal.Zero)
	ctl := NewOrderController(f.orders)
	order := f.bookOrder(t)

	stranger := testutil.CreateCustomer(t, f.db, "auth0|stranger", decimal.Zero)
	admin := testutil.CreateAdmin(t, f.db, "auth0|admin")

	tests := []struct {
		name           string
		auth0ID        string
		role           string
		path           string
		expectedStatus int
		expectedCode   string
	}{
		{"owner", f.customer.Auth0ID, models.RoleUser, fmt.Sprintf("/orders/%d/status", order.ID), http.StatusOK, ""},
		{"admin", admin.Auth0ID, models.RoleAdmin, fmt.Sprintf("/orders/%d/status", order.ID), http.StatusOK, ""},
		{"another customer", stranger.Auth0ID, models.RoleUser, fmt.Sprintf("/orders/%d/status", order.ID), http.StatusForbidden, "FORBIDDEN"},
		{"unassigned partner", f.partner.User.Auth0ID, models.RolePartner, fmt.Sprintf("/orders/%d/status", order.ID), http.StatusForbidden, "FORBIDDEN"},
		{"unknown order", f.customer.Auth0ID, models.RoleUser, "/orders/9999/status", http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"malformed id", f.customer.Auth0ID, models.RoleUser, "/orders/abc/status", http.StatusBadRequest, "INVALID_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/orders/:id/status", mockAuthMiddleware(tt.auth0ID, tt.role, "token"), ctl.GetOrderStatus)

			w, response := performJSON(t, router, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			if tt.expectedStatus != http.StatusOK {
				assert.Equal(t, tt.expectedCode, errorCode(response))
				return
			}
			data := response["data"].(map[string]interface{})
			assert.Equal(t, float64(order.ID), data["order_id"])
			assert.Equal(t, models.OrderStatusPending, data["status"])
			assert.Equal(t, false, data["is_settled"])
		})
	}
}

func TestCancelOrder(t *testing.T) {
	f := newAPIFixture(t, decimal.Zero)
	ctl := NewOrderController(f.orders)
	order := f.bookOrder(t)
	taken := f.bookOrder(t)
	_, err := f.orders.AcceptOrder(t.Context(), f.partnerPrincipal(), taken.ID)
	require.NoError(t, err)

	router := setupTestRouter()
	router.POST("/orders/:id/cancel", mockAuthMiddleware(f.customer.Auth0ID, models.RoleUser, "token"), ctl.CancelOrder)

	w, response := performJSON(t, router, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	assert.Equal(t, models.OrderStatusCancelled, response["data"].(map[string]interface{})["status"])

	w, response = performJSON(t, router, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", taken.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ORDER_NOT_CANCELLABLE", errorCode(response))
}

func TestCreateReview(t *testing.T) {
	f := newAPIFixture(t, decimal.NewFromInt(1000))
	ctl := NewOrderController(f.orders)
	order := f.bookOrder(t)

	router := setupTestRouter()
	router.POST("/orders/:id/review", mockAuthMiddleware(f.customer.Auth0ID, models.RoleUser, "token"), ctl.CreateReview)
	path := fmt.Sprintf("/orders/%d/review", order.ID)

	w, response := performJSON(t, router, http.MethodPost, path, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusConflict, w.Code, "not completed yet")
	assert.Equal(t, "ORDER_NOT_COMPLETED", errorCode(response))

	partner := f.partnerPrincipal()
	_, err := f.orders.AcceptOrder(t.Context(), partner, order.ID)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(t.Context(), partner, order.ID, models.OrderStatusInProgress)
	require.NoError(t, err)
	done, err := f.orders.UpdateStatus(t.Context(), partner, order.ID, models.OrderStatusServiceCompleted)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, done.Status)

	w, response = performJSON(t, router, http.MethodPost, path, map[string]interface{}{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(response))

	w, response = performJSON(t, router, http.MethodPost, path, map[string]interface{}{"rating": 4, "comment": "Spotless"})
	require.Equal(t, http.StatusCreated, w.Code, "Response body: %s", w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["rating"])
	assert.Equal(t, "Spotless", data["comment"])

	w, response = performJSON(t, router, http.MethodPost, path, map[string]interface{}{"rating": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_REVIEWED", errorCode(response))
}
