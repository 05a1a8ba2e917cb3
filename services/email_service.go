package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kendall-kelly/home-services-api/config"
	"github.com/kendall-kelly/home-services-api/logger"
	"go.uber.org/zap"
)

// Email templates, one per notification kind
const (
	TemplateNewOrder          = "partner-new-order"
	TemplateOrderAccepted     = "customer-order-accepted"
	TemplateThresholdExceeded = "customer-no-partner-yet"
	TemplatePaymentRequested  = "customer-payment-requested"
)

// SendResult is the outcome of a single send
type SendResult struct {
	Success bool
	Error   string
}

// EmailSender delivers a named template with a flat key-value payload
type EmailSender interface {
	Send(ctx context.Context, template, to string, data map[string]string) SendResult
}

// HTTPEmailService posts send requests to an email delivery API.
// Construct it once at startup and inject it.
type HTTPEmailService struct {
	url        string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewEmailSender returns the HTTP sender when EMAIL_SERVICE_URL is set and
// a logging sender otherwise.
func NewEmailSender(cfg *config.Config) EmailSender {
	if cfg.EmailServiceURL == "" {
		logger.Log.Warn("EMAIL_SERVICE_URL not set, emails will only be logged")
		return LogEmailSender{}
	}
	return &HTTPEmailService{
		url:    cfg.EmailServiceURL,
		apiKey: cfg.EmailAPIKey,
		from:   cfg.EmailFrom,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type emailRequest struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// Send posts one email. Failures are returned in the result, never raised.
func (s *HTTPEmailService) Send(ctx context.Context, template, to string, data map[string]string) SendResult {
	body, err := json.Marshal(emailRequest{From: s.from, To: to, Template: template, Data: data})
	if err != nil {
		return SendResult{Error: fmt.Sprintf("failed to encode email: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return SendResult{Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("failed to call email service: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return SendResult{Error: fmt.Sprintf("email service returned status %d: %s", resp.StatusCode, string(raw))}
	}
	return SendResult{Success: true}
}

// LogEmailSender writes emails to the log instead of sending them
type LogEmailSender struct{}

// Send logs the email and reports success
func (LogEmailSender) Send(ctx context.Context, template, to string, data map[string]string) SendResult {
	logger.Log.Info("Email (not sent)",
		zap.String("template", template),
		zap.String("to", to),
		zap.Any("data", data),
	)
	return SendResult{Success: true}
}
