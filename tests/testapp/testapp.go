// Package testapp assembles the full HTTP application over an in-memory
// database and mock collaborators for the integration and acceptance suites.
package testapp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/config"
	"github.com/kendall-kelly/home-services-api/server"
	"github.com/kendall-kelly/home-services-api/services"
	"github.com/kendall-kelly/home-services-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	// CronSecret authorises the internal sweep endpoint
	CronSecret = "test-cron-secret"
	// GatewaySecret signs mock payment callbacks
	GatewaySecret = "test-gateway-secret"
)

// App is a running application plus handles on its collaborators
type App struct {
	Router   *gin.Engine
	DB       *gorm.DB
	Config   *config.Config
	Services *server.Services
	Gateway  *services.MockPaymentGateway
	Sender   *services.MockEmailSender
	Blobs    *services.MockBlobStore
	UserInfo *testutil.StubUserInfo
}

// TestConfig is the configuration every test application runs with
func TestConfig() *config.Config {
	return &config.Config{
		GoEnv:                 "test",
		Currency:              "INR",
		ServiceTimezone:       "UTC",
		OrderTxTimeout:        5 * time.Second,
		SignupBonus:           decimal.NewFromInt(100),
		ReferralBonus:         decimal.NewFromInt(50),
		NotificationWorkers:   2,
		NotificationQueueSize: 64,
		CronSecret:            CronSecret,
	}
}

// New builds the application and registers cleanup of its workers
func New(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	cfg := TestConfig()

	app := &App{
		DB:       db,
		Config:   cfg,
		Gateway:  services.NewMockPaymentGateway(GatewaySecret),
		Sender:   services.NewMockEmailSender(),
		Blobs:    services.NewMockBlobStore(),
		UserInfo: testutil.NewStubUserInfo(),
	}

	app.Services = server.NewServices(db, cfg, server.Collaborators{
		Gateway:  app.Gateway,
		Email:    app.Sender,
		Images:   services.NewImageService(app.Blobs),
		UserInfo: app.UserInfo,
	})
	app.Services.Dispatcher.Start()
	t.Cleanup(app.Services.Dispatcher.Stop)

	app.Router = server.SetupRouter(server.NewApplication(app.Services, cfg, testutil.MockAuthMiddleware()))
	return app
}

// Caller identifies who a request is sent as. The zero value is anonymous.
type Caller struct {
	Auth0ID string
	Role    string
}

// Headers returns the mock auth headers for c
func (c Caller) Headers() http.Header {
	h := http.Header{}
	if c.Auth0ID != "" {
		h.Set("X-Test-User", c.Auth0ID)
		h.Set("X-Test-Role", c.Role)
	}
	return h
}

// NewRequest builds a JSON request as the caller. A nil body sends no payload.
func NewRequest(t *testing.T, method, url string, caller Caller, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range caller.Headers() {
		req.Header[k] = v
	}
	return req
}

// Do sends a JSON request through the router
func (a *App) Do(t *testing.T, method, path string, caller Caller, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, NewRequest(t, method, path, caller, body))
	return w
}

// Envelope is the standard response wrapper
type Envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details interface{} `json:"details"`
	} `json:"error"`
}

// Decode parses the envelope and, when out is non-nil, its data
func Decode(t *testing.T, body []byte, out interface{}) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

// ErrorCode returns the error code of a failed response, or "" on success
func ErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	env := Decode(t, body, nil)
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}
