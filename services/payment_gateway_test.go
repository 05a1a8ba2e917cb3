package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kendall-kelly/home-services-api/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureVerification(t *testing.T) {
	gateway := NewRazorpayGateway(&config.Config{RazorpayKeySecret: "s3cr3t"})
	valid := SignPayment("s3cr3t", "order_1", "pay_1")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		expected  bool
	}{
		{"valid signature", "order_1", "pay_1", valid, true},
		{"tampered payment id", "order_1", "pay_2", valid, false},
		{"tampered order id", "order_2", "pay_1", valid, false},
		{"wrong secret", "order_1", "pay_1", SignPayment("other", "order_1", "pay_1"), false},
		{"empty signature", "order_1", "pay_1", "", false},
		{"empty payment id", "order_1", "", valid, false},
		{"garbage signature", "order_1", "pay_1", "not-hex", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gateway.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestVerifySignature_FailsClosedWithoutSecret(t *testing.T) {
	gateway := NewRazorpayGateway(&config.Config{})
	assert.False(t, gateway.VerifySignature("order_1", "pay_1", SignPayment("", "order_1", "pay_1")))
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		expected int64
		wantErr  bool
	}{
		{"300", 30000, false},
		{"300.00", 30000, false},
		{"0.01", 1, false},
		{"1499.5", 149950, false},
		{"10.005", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			minor, err := ToMinorUnits(dec(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, minor)
		})
	}
}

func TestRazorpayCreateOrder(t *testing.T) {
	var received razorpayOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_Abc123",
			"amount":   received.Amount,
			"currency": received.Currency,
			"receipt":  received.Receipt,
			"status":   "created",
		})
	}))
	defer server.Close()

	gateway := NewRazorpayGateway(&config.Config{
		RazorpayBaseURL:   server.URL + "/",
		RazorpayKeyID:     "rzp_key",
		RazorpayKeySecret: "rzp_secret",
	})

	order, err := gateway.CreateOrder(t.Context(), 30000, "INR", "order_42", map[string]string{"order_id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "order_Abc123", order.ID)
	assert.Equal(t, int64(30000), order.Amount)
	assert.Equal(t, "rzp_key", gateway.KeyID())

	assert.Equal(t, int64(30000), received.Amount)
	assert.Equal(t, "INR", received.Currency)
	assert.Equal(t, "order_42", received.Receipt)
	assert.Equal(t, "42", received.Notes["order_id"])
}

func TestRazorpayCreateOrder_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
	}))
	defer server.Close()

	gateway := NewRazorpayGateway(&config.Config{RazorpayBaseURL: server.URL})

	_, err := gateway.CreateOrder(t.Context(), 100, "INR", "r", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")

	_, err = gateway.CreateOrder(t.Context(), 0, "INR", "r", nil)
	assert.Error(t, err)
}

func TestMockPaymentGateway(t *testing.T) {
	gateway := NewMockPaymentGateway(testGatewaySecret)

	order, err := gateway.CreateOrder(t.Context(), 500, "INR", "order_1", nil)
	require.NoError(t, err)
	assert.Equal(t, "order_mock_1", order.ID)
	assert.True(t, gateway.VerifySignature(order.ID, "pay_1", gateway.Sign(order.ID, "pay_1")))
	assert.False(t, gateway.VerifySignature(order.ID, "pay_2", gateway.Sign(order.ID, "pay_1")))
	assert.Len(t, gateway.Orders(), 1)
}
