package engine

import "net/http"

// HeaderPolicy returns the security headers to set on outgoing responses.
// The map is empty when the policy is disabled; headers with an empty value
// are left out. A fresh map is returned on every call.
func HeaderPolicy(cfg *Config) map[string]string {
	headers := make(map[string]string)
	if !cfg.SecurityHeadersEnabled {
		return headers
	}
	for _, h := range cfg.SecurityHeaders {
		if h.Value == "" {
			continue
		}
		headers[h.Name] = h.Value
	}
	return headers
}

// ApplyHeaders overwrites each header in dst, replacing any value a backend
// may already have set.
func ApplyHeaders(dst http.Header, headers map[string]string) {
	for name, value := range headers {
		dst.Set(name, value)
	}
}
