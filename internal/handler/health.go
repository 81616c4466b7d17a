package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"https-redirect/internal/engine"
	"https-redirect/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints on the admin listener.
type HealthHandler struct {
	store   *engine.Store
	forward *service.ForwardService
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store *engine.Store, fwd *service.ForwardService, v Version) *HealthHandler {
	return &HealthHandler{store: store, forward: fwd, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the active redirect settings.
func (h *HealthHandler) Status(c echo.Context) error {
	cfg := h.store.Load()
	return c.JSON(http.StatusOK, map[string]any{
		"status":                   "ok",
		"version":                  string(h.version),
		"redirect_enabled":         cfg.RedirectEnabled,
		"redirect_status_code":     cfg.RedirectStatusCode,
		"https_port":               cfg.HTTPSPort,
		"secure_ports":             cfg.SecurePorts,
		"exemption_patterns":       len(cfg.ExemptionPatterns),
		"security_headers_enabled": cfg.SecurityHeadersEnabled,
		"backend_configured":       h.forward != nil && h.forward.Enabled(),
	})
}
