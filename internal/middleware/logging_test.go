package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/test", func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderLocation, "https://example.com/test")
		return c.NoContent(http.StatusPermanentRedirect)
	})

	req := httptest.NewRequest(http.MethodGet, "/test?x=1", http.NoBody)
	req.Host = "example.com"
	req = req.WithContext(context.WithValue(req.Context(), http.LocalAddrContextKey, &net.TCPAddr{Port: 80}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPermanentRedirect)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	checks := map[string]any{
		"msg":        "request",
		"method":     "GET",
		"host":       "example.com",
		"uri":        "/test?x=1",
		"local_port": float64(80),
		"status":     float64(308),
		"location":   "https://example.com/test",
	}
	for k, want := range checks {
		if got := entry[k]; got != want {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
}
