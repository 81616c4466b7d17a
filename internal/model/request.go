package model

import (
	"net"
	"net/http"
	"strings"
)

// RequestContext is the per-request input to the redirect engine.
// It is built by the handler at request arrival and never modified afterwards.
type RequestContext struct {
	Method string
	Host   string // raw Host header, may carry a port and/or IPv6 brackets
	URI    string // path + query exactly as received

	LocalPort int
	// Secure reports that the Go server itself accepted the connection over TLS.
	Secure bool
}

// NewRequestContext captures the engine inputs from an inbound request.
// An absolute-form target ("GET http://host/x?a=1") is reduced to its path
// and query, keeping the escaped bytes. LocalPort is zero when the server
// did not record the accepting address.
func NewRequestContext(req *http.Request) RequestContext {
	uri := req.RequestURI
	if uri == "" || (!strings.HasPrefix(uri, "/") && req.URL.IsAbs()) {
		uri = req.URL.RequestURI()
	}
	return RequestContext{
		Method:    req.Method,
		Host:      req.Host,
		URI:       uri,
		LocalPort: LocalPort(req),
		Secure:    req.TLS != nil,
	}
}

// LocalPort returns the port of the listener that accepted req.
func LocalPort(req *http.Request) int {
	switch addr := req.Context().Value(http.LocalAddrContextKey).(type) {
	case *net.TCPAddr:
		return addr.Port
	case net.Addr:
		if _, port, err := net.SplitHostPort(addr.String()); err == nil {
			if ap, err := net.LookupPort("tcp", port); err == nil {
				return ap
			}
		}
	}
	return 0
}
