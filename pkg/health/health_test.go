package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, checker *Checker, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	checker.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLive(t *testing.T) {
	rec := serve(t, NewChecker("test"), "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestReady_NotStarted(t *testing.T) {
	rec := serve(t, NewChecker("test"), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReady_ChecksPass(t *testing.T) {
	checker := NewChecker("test")
	checker.AddCheck("storage", func(context.Context) error { return nil })
	checker.SetReady(true)

	rec := serve(t, checker, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}

func TestReady_CheckFails(t *testing.T) {
	checker := NewChecker("test")
	checker.AddCheck("storage", func(context.Context) error { return errors.New("storage is disabled") })
	checker.SetReady(true)

	rec := serve(t, checker, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "storage is disabled", status.Checks["storage"].Message)
}

func TestHealth(t *testing.T) {
	checker := NewChecker("1.2.3")
	checker.AddCheck("storage", func(context.Context) error { return nil })
	checker.AddCheck("redis", func(context.Context) error { return nil })

	rec := serve(t, checker, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Len(t, status.Checks, 2)
}
