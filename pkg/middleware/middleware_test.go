package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/iris/pkg/context"
)

type stubVerifier struct {
	claims *UserClaims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (*UserClaims, error) {
	return s.claims, s.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestContext_SetsRequestAndCorrelationIDs(t *testing.T) {
	e := newEcho()
	var requestID, correlationID string
	e.GET("/", func(c echo.Context) error {
		requestID = appctx.GetRequestID(c.Request().Context())
		correlationID = appctx.GetCorrelationID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-9")
	rec := serve(e, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "corr-9", correlationID)
}

func TestContext_KeepsIncomingRequestID(t *testing.T) {
	e := newEcho()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := serve(e, req)

	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
}

func TestError_RendersHTTPError(t *testing.T) {
	e := newEcho()
	e.GET("/", func(echo.Context) error {
		return httperror.NewHTTPError(http.StatusNotFound, "sync run not found")
	})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync run not found")
	assert.Contains(t, rec.Body.String(), `"request_id"`)
}

func TestError_HidesUnexpectedErrors(t *testing.T) {
	e := newEcho()
	e.GET("/", func(echo.Context) error { return errors.New("pq: secret detail") })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestLogger_PassesThrough(t *testing.T) {
	e := newEcho()
	e.Use(Logger(testLogger()))
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		code     int
	}{
		{"missing token", "", stubVerifier{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubVerifier{}, http.StatusUnauthorized},
		{"invalid token", "Bearer bad", stubVerifier{err: errors.New("expired")}, http.StatusUnauthorized},
		{"missing role", "Bearer ok", stubVerifier{claims: &UserClaims{Sub: "u1"}}, http.StatusForbidden},
		{"authorized", "Bearer ok", stubVerifier{claims: adminClaims()}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testLogger()
			e := newEcho()
			var userID string
			e.POST("/run", func(c echo.Context) error {
				userID = appctx.GetUserID(c.Request().Context())
				return c.NoContent(http.StatusOK)
			}, Authentication(logger, tt.verifier), RequireRole(logger, "iris-admin"))

			req := httptest.NewRequest(http.MethodPost, "/run", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(e, req)

			require.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "u1", userID)
			}
		})
	}
}

func adminClaims() *UserClaims {
	claims := &UserClaims{Sub: "u1"}
	claims.RealmAccess.Roles = []string{"iris-admin"}
	return claims
}
