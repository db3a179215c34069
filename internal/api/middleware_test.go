package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := RequestIDMiddleware(LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusConflict, "conflict", "slot taken")
	})))

	req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusConflict), fields["status"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Positive(t, fields["bytes"])
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, accessLevel(http.StatusNoContent))
	assert.Equal(t, zapcore.WarnLevel, accessLevel(http.StatusNotFound))
	assert.Equal(t, zapcore.ErrorLevel, accessLevel(http.StatusServiceUnavailable))
}
