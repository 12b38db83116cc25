package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/iris/pkg/context"
)

// HeaderCorrelationID lets an external trigger (cron, pipeline) supply the
// correlation id a sync run is recorded under.
const HeaderCorrelationID = "X-Correlation-Id"

// Context assigns every request an id, echoed back in the response, and
// lifts a caller-supplied correlation id into the request context.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := appctx.SetRequestID(req.Context(), requestID)
			if correlationID := req.Header.Get(HeaderCorrelationID); correlationID != "" {
				ctx = appctx.SetCorrelationID(ctx, correlationID)
				c.Response().Header().Set(HeaderCorrelationID, correlationID)
			}
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
