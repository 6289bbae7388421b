package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success at info", status: http.StatusCreated, wantLevel: "INFO"},
		{name: "client error at warn", status: http.StatusConflict, wantLevel: "WARN"},
		{name: "server error at error", status: http.StatusBadGateway, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuffer bytes.Buffer
			testLogger := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelInfo}))

			router := gin.New()
			router.Use(CorrelationID())
			router.Use(Logger(testLogger))
			router.POST("/api/v1/removals/:id/sync", func(c *gin.Context) {
				c.Status(tt.status)
			})

			req, _ := http.NewRequest(http.MethodPost, "/api/v1/removals/42/sync?dry=1", nil)
			req.Header.Set("User-Agent", "test-agent")
			req.Header.Set(CorrelationIDHeader, "corr-log")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)

			logOutput := logBuffer.String()
			assert.Contains(t, logOutput, `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, logOutput, `"msg":"HTTP request"`)
			assert.Contains(t, logOutput, `"method":"POST"`)
			assert.Contains(t, logOutput, `"path":"/api/v1/removals/42/sync?dry=1"`)
			assert.Contains(t, logOutput, `"route":"/api/v1/removals/:id/sync"`)
			assert.Contains(t, logOutput, `"user_agent":"test-agent"`)
			assert.Contains(t, logOutput, `"correlation_id":"corr-log"`)
		})
	}
}
