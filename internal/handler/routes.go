package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"https-redirect/internal/config"
	"https-redirect/internal/metrics"
)

// RegisterRoutes makes the decision handler the terminal stage of the
// traffic instance. It is installed as the innermost middleware rather than
// as routes, so every request reaches it whatever its path or method and
// the router never answers 404 or 405 on its own. It must be called after
// the rest of the traffic middleware chain has been added.
func RegisterRoutes(e *echo.Echo, redirect *RedirectHandler) {
	e.Use(func(echo.HandlerFunc) echo.HandlerFunc {
		return redirect.Handle
	})
}

// RegisterAdminRoutes wires the health, status and metrics endpoints onto
// the admin Echo instance.
func RegisterAdminRoutes(e *echo.Echo, health *HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	if cfg.Metrics.Enabled && m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
