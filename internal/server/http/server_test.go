package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/testutil"
)

func TestProbesAndRequestID(t *testing.T) {
	e := NewEcho(Params{
		Config:   config.Config{},
		Database: testutil.SQLite(t),
		Logger:   zap.NewNop(),
		Level:    zap.NewAtomicLevel(),
	})

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID), path)
	}
}

func TestLogLevelEndpoint(t *testing.T) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	e := NewEcho(Params{Logger: zap.NewNop(), Level: level})

	req := httptest.NewRequest(http.MethodPut, "/admin/log-level", strings.NewReader(`{"level":"debug"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}
