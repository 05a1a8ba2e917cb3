package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/config"
	"github.com/kendall-kelly/home-services-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthCheck is a unit test for the HealthCheck handler function
func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status code 200")

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")

	assert.Equal(t, true, response["success"], "Expected success to be true")
	assert.Equal(t, "Home Services API is running", response["message"], "Expected correct message")
}

// TestHealthCheckResponseFormat tests the exact JSON format
func TestHealthCheckResponseFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HealthCheck(c)

	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
	assert.Contains(t, response, "success")
	assert.Contains(t, response, "message")
}

func TestDatabaseStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Cleanup(func() { config.SetDB(nil) })

	serve := func() (*httptest.ResponseRecorder, map[string]interface{}) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/database/status", nil)
		DatabaseStatus(c)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w, body
	}

	t.Run("not configured", func(t *testing.T) {
		config.SetDB(nil)

		w, body := serve()
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "DATABASE_ERROR", body["error"].(map[string]interface{})["code"])
	})

	t.Run("connected", func(t *testing.T) {
		config.SetDB(testutil.SetupTestDB(t))

		w, body := serve()
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Database connected", body["message"])

		tables, ok := body["tables"].([]interface{})
		require.True(t, ok, "tables should be a list")
		assert.Contains(t, tables, "orders")
		assert.Contains(t, tables, "wallets")
		assert.Contains(t, tables, "transactions")
	})

	t.Run("closed connection", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
		config.SetDB(db)

		w, body := serve()
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "DATABASE_CONNECTION_ERROR", body["error"].(map[string]interface{})["code"])
	})
}
