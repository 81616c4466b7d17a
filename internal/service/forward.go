// Package service implements pass-through forwarding to the backend.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"https-redirect/internal/client"
	"https-redirect/internal/config"
	"https-redirect/internal/model"
)

// ErrNoBackend is returned by Forward when no backend base URL is configured.
var ErrNoBackend = errors.New("no backend configured")

// hopByHopHeaders are connection-scoped and never forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ForwardService sends pass-through requests to the backend.
type ForwardService struct {
	client  *client.BackendClient
	logger  *slog.Logger
	baseURL *url.URL // nil when no backend is configured
}

// NewForwardService creates a ForwardService. An empty backend.base_url is
// allowed; Forward then returns ErrNoBackend.
func NewForwardService(c *client.BackendClient, cfg *config.Config, logger *slog.Logger) (*ForwardService, error) {
	s := &ForwardService{
		client: c,
		logger: logger.With("component", "forward_service"),
	}
	if cfg.Backend.BaseURL == "" {
		return s, nil
	}

	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend base_url: %w", err)
	}
	s.baseURL = u
	return s, nil
}

// Enabled reports whether a backend is configured.
func (s *ForwardService) Enabled() bool {
	return s.baseURL != nil
}

// Forward sends fr to the backend and returns the response.
// The caller is responsible for closing the response body.
func (s *ForwardService) Forward(fr *model.ForwardRequest) (*model.ForwardResponse, error) {
	if s.baseURL == nil {
		return nil, ErrNoBackend
	}

	backendURL := s.buildBackendURL(fr.RequestURI)
	header := s.filterRequestHeaders(fr.Header)
	setForwardedHeaders(header, fr)

	s.logger.Debug("forwarding request",
		"method", fr.Method,
		"uri", fr.RequestURI,
	)

	resp, err := s.client.DoStream(fr.Ctx, fr.Method, backendURL, fr.Host, header, fr.Body)
	if err != nil {
		return nil, fmt.Errorf("forward to backend: %w", err)
	}

	resp.Header = s.filterResponseHeaders(resp.Header)
	return resp, nil
}

// buildBackendURL joins the backend base URL with the raw request target,
// leaving the target's bytes untouched.
func (s *ForwardService) buildBackendURL(requestURI string) string {
	if !strings.HasPrefix(requestURI, "/") {
		// Absolute-form or asterisk-form targets: keep only path and query.
		if u, err := url.Parse(requestURI); err == nil && u.IsAbs() {
			requestURI = u.RequestURI()
		} else {
			requestURI = "/"
		}
	}
	base := s.baseURL.Scheme + "://" + s.baseURL.Host + strings.TrimSuffix(s.baseURL.EscapedPath(), "/")
	return base + requestURI
}

func (s *ForwardService) filterRequestHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	removeHopByHop(dst)
	return dst
}

func (s *ForwardService) filterResponseHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}
	removeHopByHop(dst)
	return dst
}

// removeHopByHop deletes the fixed hop-by-hop set plus any header named in
// the Connection header.
func removeHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

func setForwardedHeaders(h http.Header, fr *model.ForwardRequest) {
	if fr.RemoteIP != "" {
		if prior := h.Values("X-Forwarded-For"); len(prior) > 0 {
			h.Set("X-Forwarded-For", strings.Join(prior, ", ")+", "+fr.RemoteIP)
		} else {
			h.Set("X-Forwarded-For", fr.RemoteIP)
		}
	}
	if fr.Host != "" {
		h.Set("X-Forwarded-Host", fr.Host)
	}
	proto := "http"
	if fr.Secure {
		proto = "https"
	}
	h.Set("X-Forwarded-Proto", proto)
}
