package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/logger"
	"go.uber.org/zap"
)

// CronSecretHeader carries the shared secret of scheduled triggers
const CronSecretHeader = "X-Cron-Secret"

// RequireCronSecret admits requests carrying the configured secret.
// An empty secret disables the endpoint entirely.
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abortJSON(c, http.StatusServiceUnavailable, "CRON_DISABLED", "Scheduled triggers are not configured")
			return
		}

		got := c.GetHeader(CronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.Log.Warn("Rejected scheduled trigger", zap.String("path", c.Request.URL.Path), zap.String("client_ip", c.ClientIP()))
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid cron secret")
			return
		}

		c.Next()
	}
}
