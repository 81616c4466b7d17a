package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"https-redirect/internal/engine"
	"https-redirect/internal/metrics"
	"https-redirect/internal/model"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request, labelled with the listener context that accepted it.
func MetricsMiddleware(m *metrics.Metrics, store *engine.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			listener := engine.Classify(ConfigFrom(c, store), model.NewRequestContext(c.Request())).String()

			err := next(c)

			// When a handler returns an *echo.HTTPError the status has not
			// been written yet; the central error handler does that later.
			statusCode := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					statusCode = he.Code
				}
			}

			status := strconv.Itoa(statusCode)
			method := metrics.NormalizeMethod(c.Request().Method)
			duration := time.Since(start).Seconds()

			m.RequestsTotal.WithLabelValues(method, status, listener).Inc()
			m.RequestDuration.WithLabelValues(method, status, listener).Observe(duration)

			return err
		}
	}
}
