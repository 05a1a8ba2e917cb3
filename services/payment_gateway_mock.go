package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MockPaymentGateway is an in-memory PaymentGateway for testing.
// Signatures use the same HMAC scheme as the real gateway.
type MockPaymentGateway struct {
	secret string
	keyID  string
	orders []GatewayOrder
	fail   error
	mu     sync.Mutex
}

// NewMockPaymentGateway creates a mock gateway signing with secret
func NewMockPaymentGateway(secret string) *MockPaymentGateway {
	return &MockPaymentGateway{secret: secret, keyID: "rzp_test_mock"}
}

// CreateOrder records the order and returns a deterministic id
func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return nil, m.fail
	}
	if amountMinor <= 0 {
		return nil, errors.New("amount must be positive")
	}

	order := GatewayOrder{
		ID:       fmt.Sprintf("order_mock_%d", len(m.orders)+1),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	m.orders = append(m.orders, order)
	return &order, nil
}

// VerifySignature checks the HMAC like the real gateway
func (m *MockPaymentGateway) VerifySignature(remoteOrderID, remotePaymentID, signature string) bool {
	return verifyHMACSignature(m.secret, remoteOrderID, remotePaymentID, signature)
}

// KeyID returns the mock public key
func (m *MockPaymentGateway) KeyID() string {
	return m.keyID
}

// Sign produces a valid signature for a payment against a mock order
func (m *MockPaymentGateway) Sign(remoteOrderID, remotePaymentID string) string {
	return SignPayment(m.secret, remoteOrderID, remotePaymentID)
}

// FailWith makes subsequent CreateOrder calls return err (nil to reset)
func (m *MockPaymentGateway) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Orders returns a copy of every order created so far
func (m *MockPaymentGateway) Orders() []GatewayOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GatewayOrder, len(m.orders))
	copy(out, m.orders)
	return out
}
