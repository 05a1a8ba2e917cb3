package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/middleware"
	"github.com/kendall-kelly/home-services-api/services"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "https://test.auth0.com/",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, userID, role string) {
	c.Set("user_id", userID)
	c.Set("access_token", MockAccessToken(userID))
	c.Set("validated_claims", MockValidatedClaims(userID, role, nil))
}

// MockAuthMiddleware authenticates every request as the caller named in the
// X-Test-User and X-Test-Role headers. Requests without X-Test-User are rejected.
func MockAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-Test-User")
		if userID == "" {
			c.AbortWithStatusJSON(401, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Failed to validate JWT.",
				},
			})
			return
		}
		SetMockAuthContext(c, userID, c.GetHeader("X-Test-Role"))
		c.Next()
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}

// MockAccessToken is the access token MockAuthMiddleware hands to userID
func MockAccessToken(userID string) string {
	return "mock-token|" + userID
}

// StubUserInfo answers userinfo lookups from profiles registered per caller
type StubUserInfo struct {
	mu       sync.Mutex
	profiles map[string]*services.Auth0UserInfo
}

// NewStubUserInfo creates an empty userinfo stub
func NewStubUserInfo() *StubUserInfo {
	return &StubUserInfo{profiles: make(map[string]*services.Auth0UserInfo)}
}

// Register makes the profile visible to requests authenticated as auth0ID
func (s *StubUserInfo) Register(auth0ID, email, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[MockAccessToken(auth0ID)] = &services.Auth0UserInfo{Sub: auth0ID, Email: email, Name: name}
}

// GetUserInfo implements services.UserInfoProvider
func (s *StubUserInfo) GetUserInfo(ctx context.Context, accessToken string) (*services.Auth0UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.profiles[accessToken]
	if !ok {
		return nil, errors.New("userinfo: unknown access token")
	}
	return info, nil
}
