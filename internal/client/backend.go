// Package client holds the outbound HTTP client that relays exempt and
// secure-listener requests to the backend.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"https-redirect/internal/config"
	"https-redirect/internal/metrics"
	"https-redirect/internal/model"
)

// BackendClient relays pass-through requests to backend.base_url. It never
// follows backend redirects, so a 3xx from the backend reaches the client as is.
type BackendClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient builds the backend client. Idle connections are capped by
// backend.idle_connections and each exchange by backend.timeout_seconds.
// m may be nil.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Backend.IdleConnections,
		MaxIdleConnsPerHost: cfg.Backend.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			// Backend redirects belong to the client, not to us.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Do sends req to the backend and returns its response unmodified.
// Backend round-trip time and status are recorded when metrics are set.
// The caller closes the response body.
func (c *BackendClient) Do(req *http.Request) (*model.ForwardResponse, error) {
	c.logger.Debug("backend request",
		"method", req.Method,
		"uri", req.URL.RequestURI(),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ForwardResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.BackendDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("backend request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.BackendDuration.WithLabelValues(method).Observe(duration)
		c.metrics.BackendResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ForwardResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream relays one pass-through exchange. host, when set, replaces the
// Host derived from url so the backend sees the client's original Host.
// The body is streamed back; the caller closes it. The request is bound to
// ctx, so a client that goes away aborts the backend call.
func (c *BackendClient) DoStream(ctx context.Context, method, url, host string, header http.Header, body io.Reader) (*model.ForwardResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	req.Header = header
	if host != "" {
		req.Host = host
	}

	return c.Do(req)
}
