package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(t *testing.T, path string, status int) map[string]any {
		t.Helper()
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Logger(logger))
		router.GET("/users/:id", func(c *gin.Context) { c.Status(status) })
		router.GET("/health", func(c *gin.Context) { c.Status(status) })

		req, _ := http.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(CorrelationIDHeader, "corr-1")
		req.Header.Set("User-Agent", "test-agent")
		router.ServeHTTP(httptest.NewRecorder(), req)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		return line
	}

	t.Run("RequestDetails", func(t *testing.T) {
		line := serve(t, "/users/42?verbose=1", http.StatusOK)
		assert.Equal(t, "HTTP request", line["msg"])
		assert.Equal(t, "INFO", line["level"])
		assert.Equal(t, "GET", line["method"])
		assert.Equal(t, "/users/42?verbose=1", line["path"])
		assert.Equal(t, "/users/:id", line["route"])
		assert.Equal(t, float64(200), line["status"])
		assert.Equal(t, "test-agent", line["user_agent"])
		assert.Equal(t, "corr-1", line["correlation_id"])
		assert.Contains(t, line, "latency")
	})

	t.Run("LevelFollowsStatus", func(t *testing.T) {
		assert.Equal(t, "WARN", serve(t, "/users/42", http.StatusNotFound)["level"])
		assert.Equal(t, "ERROR", serve(t, "/users/42", http.StatusInternalServerError)["level"])
		assert.Equal(t, "DEBUG", serve(t, "/health", http.StatusOK)["level"])
	})
}
