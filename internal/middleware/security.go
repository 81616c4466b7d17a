package middleware

import (
	"github.com/labstack/echo/v4"

	"https-redirect/internal/engine"
)

const configKey = "engine_config"

// Snapshot pins the current engine configuration for the lifetime of the
// request so every later stage sees the same settings across a reload.
func Snapshot(store *engine.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(configKey, store.Load())
			return next(c)
		}
	}
}

// ConfigFrom returns the snapshot pinned by Snapshot, or the store's current
// value when the request was not routed through it.
func ConfigFrom(c echo.Context, store *engine.Store) *engine.Config {
	if cfg, ok := c.Get(configKey).(*engine.Config); ok && cfg != nil {
		return cfg
	}
	return store.Load()
}

// SecurityHeaders returns an Echo middleware that applies the configured
// security header policy to every response. Headers are set just before the
// status line is written, so they overwrite values copied from a backend.
func SecurityHeaders(store *engine.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			headers := engine.HeaderPolicy(ConfigFrom(c, store))
			if len(headers) > 0 {
				res := c.Response()
				res.Before(func() {
					engine.ApplyHeaders(res.Header(), headers)
				})
			}
			return next(c)
		}
	}
}
