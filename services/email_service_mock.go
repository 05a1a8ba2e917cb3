package services

import (
	"context"
	"sync"
)

// SentEmail is an email captured by MockEmailSender
type SentEmail struct {
	Template string
	To       string
	Data     map[string]string
}

// MockEmailSender records sends and fails for chosen recipients
type MockEmailSender struct {
	sent     []SentEmail
	failFor  map[string]string
	panicFor map[string]bool
	mu       sync.Mutex
}

// NewMockEmailSender creates an empty mock sender
func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{
		failFor:  make(map[string]string),
		panicFor: make(map[string]bool),
	}
}

// FailFor makes sends to the recipient fail with message
func (m *MockEmailSender) FailFor(to, message string) {
	m.mu.Lock()
	m.failFor[to] = message
	m.mu.Unlock()
}

// PanicFor makes sends to the recipient panic
func (m *MockEmailSender) PanicFor(to string) {
	m.mu.Lock()
	m.panicFor[to] = true
	m.mu.Unlock()
}

// Send records the email or fails as configured
func (m *MockEmailSender) Send(ctx context.Context, template, to string, data map[string]string) SendResult {
	m.mu.Lock()
	shouldPanic := m.panicFor[to]
	failure, shouldFail := m.failFor[to]
	m.mu.Unlock()

	if shouldPanic {
		panic("mock email sender panic for " + to)
	}
	if shouldFail {
		return SendResult{Error: failure}
	}

	m.mu.Lock()
	m.sent = append(m.sent, SentEmail{Template: template, To: to, Data: data})
	m.mu.Unlock()
	return SendResult{Success: true}
}

// Sent returns a copy of every successfully sent email
func (m *MockEmailSender) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentWithTemplate returns the successfully sent emails for one template
func (m *MockEmailSender) SentWithTemplate(template string) []SentEmail {
	var out []SentEmail
	for _, email := range m.Sent() {
		if email.Template == template {
			out = append(out, email)
		}
	}
	return out
}
