// Package engine implements the HTTP-to-HTTPS redirect decision: listener
// classification, exemption matching, host normalization, redirect URL
// construction and the response security header policy.
package engine

import "https-redirect/internal/model"

// Recorder receives diagnostic events from the engine. Implementations must
// not block; the engine calls them inline on the request path.
type Recorder interface {
	ExemptionMatched(pattern, uri string)
	RedirectIssued(location string, statusCode int)
	MalformedHost(host string)
}

// ListenerContext identifies which logical entry point accepted a request.
type ListenerContext int

const (
	ContextHTTP ListenerContext = iota
	ContextHTTPS
)

func (l ListenerContext) String() string {
	if l == ContextHTTPS {
		return "https"
	}
	return "http"
}

// Engine turns a RequestContext into a Decision. It holds no configuration of
// its own; each call receives the snapshot to evaluate against, so one Engine
// serves concurrent requests across config reloads.
type Engine struct {
	rec Recorder
}

// New creates an Engine. A nil Recorder discards diagnostic events.
func New(rec Recorder) *Engine {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Engine{rec: rec}
}

// Classify returns the listener context of rc under cfg.
func Classify(cfg *Config, rc model.RequestContext) ListenerContext {
	if rc.Secure || cfg.IsSecurePort(rc.LocalPort) {
		return ContextHTTPS
	}
	return ContextHTTP
}

// Decide classifies rc and returns exactly one Decision. It never mutates cfg
// or rc. The request method is deliberately not consulted: method
// preservation is carried by the configured status code.
func (e *Engine) Decide(cfg *Config, rc model.RequestContext) Decision {
	if Classify(cfg, rc) == ContextHTTPS {
		// Response-stage headers are applied separately on this listener.
		return Passthrough{}
	}

	if !cfg.RedirectEnabled {
		return passthrough(cfg)
	}

	if pattern, ok := MatchExemption(rc.URI, cfg.ExemptionPatterns); ok {
		e.rec.ExemptionMatched(pattern, rc.URI)
		return passthrough(cfg)
	}

	host := NormalizeHost(rc.Host)
	if host.Malformed {
		e.rec.MalformedHost(rc.Host)
	}

	location := BuildLocation(host.Host, rc.URI, cfg.HTTPSPort)
	e.rec.RedirectIssued(location, cfg.RedirectStatusCode)

	return Redirect{StatusCode: cfg.RedirectStatusCode, Location: location}
}

func passthrough(cfg *Config) Decision {
	if cfg.SecurityHeadersEnabled {
		return PassthroughWithHeaders{Headers: HeaderPolicy(cfg)}
	}
	return Passthrough{}
}

type nopRecorder struct{}

func (nopRecorder) ExemptionMatched(string, string) {}
func (nopRecorder) RedirectIssued(string, int)      {}
func (nopRecorder) MalformedHost(string)            {}
