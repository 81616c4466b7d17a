package model

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func withLocalAddr(req *http.Request, addr net.Addr) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), http.LocalAddrContextKey, addr))
}

func TestNewRequestContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/x?a=%20b", http.NoBody)
	req.Host = "example.com:8080"
	req = withLocalAddr(req, &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 80})

	rc := NewRequestContext(req)

	want := RequestContext{
		Method:    http.MethodPost,
		Host:      "example.com:8080",
		URI:       "/api/x?a=%20b",
		LocalPort: 80,
	}
	if rc != want {
		t.Errorf("NewRequestContext() = %+v, want %+v", rc, want)
	}
}

func TestNewRequestContext_Secure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.TLS = &tls.ConnectionState{}

	if rc := NewRequestContext(req); !rc.Secure {
		t.Error("Secure = false for a TLS request")
	}
}

func TestNewRequestContext_FallsBackToURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/p?q=1", http.NoBody)
	req.RequestURI = ""

	if rc := NewRequestContext(req); rc.URI != "/p?q=1" {
		t.Errorf("URI = %q, want %q", rc.URI, "/p?q=1")
	}
}

func TestNewRequestContext_TargetForms(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		wantHost string
		wantURI  string
	}{
		{"origin form", http.MethodGet, "/x?a=1", "example.com", "/x?a=1"},
		{"absolute form", http.MethodGet, "http://svc.example.com/x?a=1", "svc.example.com", "/x?a=1"},
		{"absolute form keeps escapes", http.MethodGet, "http://svc.example.com/a%2Fb?q=%20", "svc.example.com", "/a%2Fb?q=%20"},
		{"absolute form without path", http.MethodGet, "http://svc.example.com", "svc.example.com", "/"},
		{"asterisk form", http.MethodOptions, "*", "example.com", "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, http.NoBody)

			rc := NewRequestContext(req)
			if rc.URI != tt.wantURI {
				t.Errorf("URI = %q, want %q", rc.URI, tt.wantURI)
			}
			if rc.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", rc.Host, tt.wantHost)
			}
		})
	}
}

func TestLocalPort(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want int
	}{
		{"tcp", &net.TCPAddr{Port: 443}, 443},
		{"ipv6 tcp", &net.TCPAddr{IP: net.IPv6loopback, Port: 8080}, 8080},
		{"other addr", &net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, 0},
		{"none", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.addr != nil {
				req = withLocalAddr(req, tt.addr)
			}
			if got := LocalPort(req); got != tt.want {
				t.Errorf("LocalPort() = %d, want %d", got, tt.want)
			}
		})
	}
}
