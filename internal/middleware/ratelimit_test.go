package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"https-redirect/internal/engine"
	"https-redirect/internal/middleware"
)

func TestRateLimiter_LimitsRedirects(t *testing.T) {
	e := echo.New()

	// 1 request per second, burst of 1: the second request is rejected.
	limiter := echomw.NewRateLimiterMemoryStore(rate.Limit(1))
	e.Use(echomw.RateLimiter(limiter))
	e.Any("/*", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderLocation, "https://example.com/")
		return c.NoContent(http.StatusPermanentRedirect)
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusPermanentRedirect)
	}

	got429 := false
	for range 10 {
		req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	if !got429 {
		t.Error("expected at least one 429 response after burst, got none")
	}
}

func TestRateLimiter_RejectionCarriesSecurityHeaders(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.SecurityHeadersEnabled = true

	e := echo.New()
	e.Use(middleware.SecurityHeaders(engine.NewStore(cfg)))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(1))))
	e.Any("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	var rec *httptest.ResponseRecorder
	for range 10 {
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		if rec.Code == http.StatusTooManyRequests {
			break
		}
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if v := rec.Header().Get(engine.HeaderContentTypeOptions); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q on 429, want nosniff", v)
	}
}
