package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kendall-kelly/home-services-api/config"
	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GatewayOrder is the remote order created by the payment gateway
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentGateway creates remote payment orders and verifies the signature
// the checkout widget returns once the customer has paid.
type PaymentGateway interface {
	// CreateOrder creates a remote order. amountMinor is in paise.
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)

	// VerifySignature checks signature against HMAC-SHA256(secret, "order|payment")
	VerifySignature(remoteOrderID, remotePaymentID, signature string) bool

	// KeyID is the public key the client-side checkout needs
	KeyID() string
}

// RazorpayGateway talks to the Razorpay Orders API
type RazorpayGateway struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewRazorpayGateway creates a gateway client from configuration
func NewRazorpayGateway(cfg *config.Config) *RazorpayGateway {
	return &RazorpayGateway{
		baseURL:   strings.TrimRight(cfg.RazorpayBaseURL, "/"),
		keyID:     cfg.RazorpayKeyID,
		keySecret: cfg.RazorpayKeySecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder posts a new order to {base}/v1/orders using basic auth
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	if amountMinor <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", amountMinor)
	}

	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call orders endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Log.Warn("Failed to close gateway response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr razorpayErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("orders endpoint returned status %d: %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("orders endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var order GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("orders endpoint returned no order id")
	}

	logger.Log.Info("Gateway order created",
		zap.String("gateway_order_id", order.ID),
		zap.Int64("amount_minor", order.Amount),
		zap.String("receipt", receipt),
	)
	return &order, nil
}

// VerifySignature fails closed on any mismatch, including an empty secret
func (g *RazorpayGateway) VerifySignature(remoteOrderID, remotePaymentID, signature string) bool {
	return verifyHMACSignature(g.keySecret, remoteOrderID, remotePaymentID, signature)
}

// KeyID returns the public key id
func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// SignPayment computes the signature the gateway attaches to a payment
func SignPayment(secret, remoteOrderID, remotePaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(remoteOrderID + "|" + remotePaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMACSignature(secret, remoteOrderID, remotePaymentID, signature string) bool {
	if secret == "" || remoteOrderID == "" || remotePaymentID == "" || signature == "" {
		return false
	}
	expected := SignPayment(secret, remoteOrderID, remotePaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ToMinorUnits converts a major-unit amount (rupees) to minor units (paise).
// Amounts with fractional paise are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has fractional minor units", amount)
	}
	return minor.IntPart(), nil
}
