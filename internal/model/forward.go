// Package model defines shared types for the redirector.
package model

import (
	"context"
	"io"
	"net/http"
)

// ForwardRequest represents a pass-through request to be sent to the backend.
type ForwardRequest struct {
	Ctx        context.Context
	Method     string
	RequestURI string // raw request target, forwarded byte-for-byte
	Host       string
	RemoteIP   string
	Secure     bool
	Header     http.Header
	Body       io.ReadCloser
}

// ForwardResponse represents the backend response to be streamed back.
type ForwardResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
