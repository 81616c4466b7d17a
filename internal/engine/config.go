package engine

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when the configuration leaves a field unset.
const (
	DefaultRedirectStatusCode = 308
	DefaultHTTPSPort          = 443
)

// Security header names recognized by the configuration surface.
const (
	HeaderHSTS               = "Strict-Transport-Security"
	HeaderFrameOptions       = "X-Frame-Options"
	HeaderContentTypeOptions = "X-Content-Type-Options"
	HeaderXSSProtection      = "X-XSS-Protection"
	HeaderReferrerPolicy     = "Referrer-Policy"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Header is a single response header of the security policy.
// An empty Value means the header is omitted.
type Header struct {
	Name  string `validate:"required"`
	Value string
}

// Config is the immutable engine configuration. A *Config is shared read-only
// by all concurrent Decide calls; reloads replace the whole value via Store.
type Config struct {
	RedirectStatusCode int      `validate:"oneof=301 302 303 307 308"`
	HTTPSPort          int      `validate:"min=1,max=65535"`
	ExemptionPatterns  []string `validate:"dive,required"`
	RedirectEnabled    bool

	// SecurePorts lists local ports that identify the HTTPS listener context.
	SecurePorts []int `validate:"dive,min=1,max=65535"`

	SecurityHeadersEnabled bool
	SecurityHeaders        []Header `validate:"dive"`
}

// DefaultExemptionPatterns returns the built-in exemption list: ACME
// challenges, health probes and webhook callbacks.
func DefaultExemptionPatterns() []string {
	return []string{
		"/.well-known/acme-challenge/*",
		"/health",
		"/status",
		"/ping",
		"/api/webhook/*",
	}
}

// DefaultSecurityHeaders returns the five named security headers with their
// default values.
func DefaultSecurityHeaders() []Header {
	return []Header{
		{Name: HeaderHSTS, Value: "max-age=31536000; includeSubDomains"},
		{Name: HeaderFrameOptions, Value: "SAMEORIGIN"},
		{Name: HeaderContentTypeOptions, Value: "nosniff"},
		{Name: HeaderXSSProtection, Value: "1; mode=block"},
		{Name: HeaderReferrerPolicy, Value: "strict-origin-when-cross-origin"},
	}
}

// DefaultConfig returns a Config populated with every default.
func DefaultConfig() *Config {
	return &Config{
		RedirectStatusCode:     DefaultRedirectStatusCode,
		HTTPSPort:              DefaultHTTPSPort,
		ExemptionPatterns:      DefaultExemptionPatterns(),
		RedirectEnabled:        true,
		SecurePorts:            []int{DefaultHTTPSPort},
		SecurityHeadersEnabled: false,
		SecurityHeaders:        DefaultSecurityHeaders(),
	}
}

// Validate checks the value ranges the engine accepts. It is meant to run at
// configuration load time, never per request.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	return nil
}

// IsSecurePort reports whether port belongs to the HTTPS listener context.
func (c *Config) IsSecurePort(port int) bool {
	return slices.Contains(c.SecurePorts, port)
}
