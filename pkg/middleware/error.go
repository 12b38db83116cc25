package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

type ErrorResponse struct {
	Message       string         `json:"message"`
	RequestID     string         `json:"request_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// Error renders httperror and echo errors with their own status and message.
// Anything else becomes an opaque 500 so internals never reach the caller.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		response := ErrorResponse{
			Message:       http.StatusText(http.StatusInternalServerError),
			RequestID:     appctx.GetRequestID(ctx),
			CorrelationID: appctx.GetCorrelationID(ctx),
			TraceID:       tracing.GetTraceID(ctx),
		}
		status := http.StatusInternalServerError

		var echoErr *echo.HTTPError
		switch {
		case httperror.IsHTTPError(err):
			httpErr := httperror.ToHTTPError(err)
			status = httperror.GetStatusCode(err)
			response.Message = httpErr.Error()
			response.Meta = httpErr.Meta
		case errors.As(err, &echoErr):
			status = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				response.Message = msg
			}
		}

		log := logger.WithContext(ctx).WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			log.Error("request failed")
		} else {
			log.Debug("request rejected")
		}

		_ = c.JSON(status, response)
	}
}
