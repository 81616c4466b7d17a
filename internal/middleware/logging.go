// Package middleware provides Echo middleware for logging, metrics and the
// response security header policy.
package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"https-redirect/internal/model"
)

// RequestLogger returns an Echo middleware that logs each request with slog.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				"method", req.Method,
				"host", req.Host,
				"uri", req.RequestURI,
				"local_port", model.LocalPort(req),
				"status", res.Status,
				"location", res.Header().Get(echo.HeaderLocation),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}
