package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"https-redirect/internal/config"
	"https-redirect/internal/engine"
	"https-redirect/internal/metrics"
	"https-redirect/internal/middleware"
	"https-redirect/internal/model"
	"https-redirect/internal/service"
)

// outcomeRejected labels requests refused by the missing host policy.
const outcomeRejected = "rejected"

// RedirectHandler asks the engine for a decision on every traffic request,
// then writes the redirect itself or forwards the request to the backend.
type RedirectHandler struct {
	engine            *engine.Engine
	store             *engine.Store
	forward           *service.ForwardService
	rejectMissingHost bool
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

// NewRedirectHandler creates a RedirectHandler.
// The metrics parameter is optional; pass nil to disable decision counters.
func NewRedirectHandler(eng *engine.Engine, store *engine.Store, fwd *service.ForwardService, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		engine:            eng,
		store:             store,
		forward:           fwd,
		rejectMissingHost: cfg.RejectMissingHost(),
		metrics:           m,
		logger:            logger.With("component", "redirect_handler"),
	}
}

// Handle classifies the request and acts on the engine's decision.
func (h *RedirectHandler) Handle(c echo.Context) error {
	cfg := middleware.ConfigFrom(c, h.store)
	rc := model.NewRequestContext(c.Request())
	listener := engine.Classify(cfg, rc)

	if h.rejectMissingHost && rc.Host == "" && h.wouldRedirect(cfg, listener, rc.URI) {
		h.count(outcomeRejected, listener)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "missing host header",
		})
	}

	decision := h.engine.Decide(cfg, rc)
	h.count(decision.Outcome(), listener)

	switch d := decision.(type) {
	case engine.Redirect:
		hdr := c.Response().Header()
		hdr.Set(echo.HeaderLocation, d.Location)
		hdr.Set("Connection", "close")
		hdr.Set(echo.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		return c.NoContent(d.StatusCode)
	case engine.PassthroughWithHeaders:
		return h.pass(c, rc, listener, d.Headers)
	default:
		return h.pass(c, rc, listener, nil)
	}
}

// wouldRedirect reports whether the engine is going to redirect a request to
// uri, without emitting diagnostics.
func (h *RedirectHandler) wouldRedirect(cfg *engine.Config, listener engine.ListenerContext, uri string) bool {
	if listener != engine.ContextHTTP || !cfg.RedirectEnabled {
		return false
	}
	_, exempt := engine.MatchExemption(uri, cfg.ExemptionPatterns)
	return !exempt
}

func (h *RedirectHandler) count(outcome string, listener engine.ListenerContext) {
	if h.metrics != nil {
		h.metrics.DecisionsTotal.WithLabelValues(outcome, listener.String()).Inc()
	}
}

// pass forwards the request to the backend and streams the response back.
// headers, when non-empty, overwrite the backend's values.
func (h *RedirectHandler) pass(c echo.Context, rc model.RequestContext, listener engine.ListenerContext, headers map[string]string) error {
	req := c.Request()

	fr := &model.ForwardRequest{
		Ctx:        req.Context(),
		Method:     req.Method,
		RequestURI: rc.URI,
		Host:       req.Host,
		RemoteIP:   peerIP(req.RemoteAddr),
		Secure:     listener == engine.ContextHTTPS,
		Header:     req.Header,
		Body:       req.Body,
	}

	resp, err := h.forward.Forward(fr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Headers the traffic middleware already set, X-Request-Id among them,
	// keep their value.
	dst := c.Response().Header()
	for key, vals := range resp.Header {
		if _, ok := dst[key]; ok {
			continue
		}
		for _, v := range vals {
			dst.Add(key, v)
		}
	}
	engine.ApplyHeaders(dst, headers)

	c.Response().WriteHeader(resp.StatusCode)

	// The status line is already sent; a copy failure leaves the client with
	// a truncated body under the backend's status.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"uri", rc.URI,
		)
	}

	return nil
}

func (h *RedirectHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrNoBackend) {
		h.logger.Warn("pass-through request with no backend configured",
			"uri", c.Request().RequestURI,
		)
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "no backend configured",
		})
	}

	h.logger.Error("backend error",
		"err", err,
		"uri", c.Request().RequestURI,
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "backend request timed out",
		})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "backend host unreachable",
		})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "backend connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "backend request failed",
	})
}

// peerIP returns the address of the directly connected client.
func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
