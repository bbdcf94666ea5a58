package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/japanesestudent/media-uploader/internal/middlewares"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		target        string
		status        int
		expectedLevel zapcore.Level
		expectQuery   bool
	}{
		{name: "get logs query", method: http.MethodGet, target: "/api/v1/units/u1/media?x=1", status: http.StatusOK, expectedLevel: zapcore.InfoLevel, expectQuery: true},
		{name: "put hides token", method: http.MethodPut, target: "/storage/m1?token=secret", status: http.StatusOK, expectedLevel: zapcore.InfoLevel},
		{name: "server error warns", method: http.MethodPost, target: "/api/v1/units/u1/media/uploads", status: http.StatusInternalServerError, expectedLevel: zapcore.WarnLevel, expectQuery: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := middlewares.RequestIDMiddleware(LoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.target, nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.expectedLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.NotEmpty(t, fields["request_id"])
			_, hasQuery := fields["query"]
			assert.Equal(t, tt.expectQuery, hasQuery)
		})
	}
}
