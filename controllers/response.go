package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/middleware"
	"github.com/kendall-kelly/home-services-api/services"
	"go.uber.org/zap"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success":   true,
		"data":      data,
		"timestamp": timestamp(),
	})
}

func respondWithMeta(c *gin.Context, status int, data, meta interface{}) {
	c.JSON(status, gin.H{
		"success":   true,
		"data":      data,
		"meta":      meta,
		"timestamp": timestamp(),
	})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success":   false,
		"error":     body,
		"timestamp": timestamp(),
	})
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrNoProvidersAvailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrGateway):
		return http.StatusFailedDependency
	case errors.Is(err, services.ErrTransactionTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, services.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError writes the error envelope for err. Unknown errors are
// logged and reported as INTERNAL_ERROR without leaking their text.
func handleServiceError(c *gin.Context, err error) {
	status := statusFor(err)

	var appErr *services.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		logger.Log.Error("Unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	if status >= 500 || appErr.Err != nil {
		logger.Log.Warn("Request failed", zap.String("path", c.Request.URL.Path), zap.String("code", appErr.Code), zap.Error(err))
	}

	var details interface{}
	if appErr.Retryable {
		details = gin.H{"retryable": true}
	}
	respondError(c, status, appErr.Code, appErr.Message, details)
}

// principalOrAbort returns the caller or writes 401
func principalOrAbort(c *gin.Context) (services.Principal, bool) {
	principal, err := middleware.GetPrincipal(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return services.Principal{}, false
	}
	return principal, true
}

// bindError writes a 400 for a malformed request body
func bindError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
}

// orderIDParam parses the :id path parameter
func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID", nil)
		return 0, false
	}
	return uint(id), true
}
