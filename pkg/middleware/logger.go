package middleware

import (
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/iris/pkg/context"
)

// Logger writes one structured line per request once the error handler has
// rendered the response, so the logged status is the one the caller saw.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			ctx := req.Context()

			log := logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).WithFields(map[string]any{
				"method":      req.Method,
				"route":       c.Path(),
				"status":      res.Status,
				"remote_ip":   c.RealIP(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes_out":   res.Size,
			})
			if res.Status >= 500 {
				log.Warn("Request failed")
				return nil
			}
			log.Info("Request")
			return nil
		}
	}
}
