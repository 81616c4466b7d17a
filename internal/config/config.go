// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"https-redirect/internal/engine"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/https-redirect/config.toml",
	"configs/config.toml",
}

// Missing Host header policies.
const (
	MissingHostRedirect = "redirect"
	MissingHostReject   = "reject"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config         string   `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Listen         []string `kong:"short='l',help='Traffic listener addresses, comma separated (overrides config).',env='LISTEN'"`
	AdminAddr      string   `kong:"help='Admin listener address (overrides config).',env='ADMIN_ADDR'"`
	BackendURL     string   `kong:"help='Backend base URL for pass-through requests (overrides config).',env='BACKEND_URL'"`
	HTTPSPort      int      `kong:"help='HTTPS port used in redirect targets (overrides config).',env='HTTPS_PORT'"`
	RedirectStatus int      `kong:"help='Redirect status code (overrides config).',env='REDIRECT_STATUS'"`
	LogLevel       string   `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Engine  EngineConfig  `toml:"engine"`
	Backend BackendConfig `toml:"backend"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
	Reload  ReloadConfig  `toml:"reload"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Listeners    []string        `toml:"listeners"`
	AdminAddr    string          `toml:"admin_addr"`
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting on traffic listeners.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// EngineConfig holds the redirect decision settings. Pointer fields
// distinguish "unset" (default applies) from an explicit empty value.
type EngineConfig struct {
	RedirectStatusCode int       `toml:"redirect_status_code"`
	HTTPSPort          int       `toml:"https_port"`
	RedirectEnabled    *bool     `toml:"redirect_enabled"`
	SecurePorts        *[]int    `toml:"secure_ports"`
	ExemptionPatterns  *[]string `toml:"exemption_patterns"`
	MissingHost        string    `toml:"missing_host"`

	SecurityHeaders SecurityHeadersConfig `toml:"security_headers"`
}

// SecurityHeadersConfig holds the response header policy. A header set to
// the empty string is omitted; an unset header takes its default value.
type SecurityHeadersConfig struct {
	Enabled                 bool    `toml:"enabled"`
	StrictTransportSecurity *string `toml:"strict_transport_security"`
	XFrameOptions           *string `toml:"x_frame_options"`
	XContentTypeOptions     *string `toml:"x_content_type_options"`
	XXSSProtection          *string `toml:"x_xss_protection"`
	ReferrerPolicy          *string `toml:"referrer_policy"`
}

// BackendConfig holds the pass-through backend connection settings.
type BackendConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `toml:"level"`
	Format      string `toml:"format"`
	File        string `toml:"file"`
	MaxSizeMB   int    `toml:"max_size_mb"`
	MaxBackups  int    `toml:"max_backups"`
	MaxAgeDays  int    `toml:"max_age_days"`
	EventBuffer int    `toml:"event_buffer"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// ReloadConfig controls configuration hot reload.
type ReloadConfig struct {
	Watch bool `toml:"watch"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/https-redirect/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.ToEngine().Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if len(cli.Listen) > 0 {
		c.Server.Listeners = cli.Listen
	}
	if cli.AdminAddr != "" {
		c.Server.AdminAddr = cli.AdminAddr
	}
	if cli.BackendURL != "" {
		c.Backend.BaseURL = cli.BackendURL
	}
	if cli.HTTPSPort != 0 {
		c.Engine.HTTPSPort = cli.HTTPSPort
	}
	if cli.RedirectStatus != 0 {
		c.Engine.RedirectStatusCode = cli.RedirectStatus
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Listeners.
	for _, addr := range c.Server.Listeners {
		if err := validateAddr(addr); err != nil {
			return fmt.Errorf("server.listeners: %w", err)
		}
	}
	if c.Server.AdminAddr != "" {
		if err := validateAddr(c.Server.AdminAddr); err != nil {
			return fmt.Errorf("server.admin_addr: %w", err)
		}
		for _, addr := range c.Server.Listeners {
			if addr == c.Server.AdminAddr {
				return fmt.Errorf("server.admin_addr %q must differ from every traffic listener", addr)
			}
		}
	}

	// Numeric bounds. Zero means "use default".
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Engine.HTTPSPort < 0 || c.Engine.HTTPSPort > 65535 {
		return fmt.Errorf("engine.https_port must be 1-65535; got %d", c.Engine.HTTPSPort)
	}
	if c.Engine.RedirectStatusCode < 0 {
		return fmt.Errorf("engine.redirect_status_code must be a 3xx redirect code; got %d", c.Engine.RedirectStatusCode)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must be non-negative; got %d", c.Backend.TimeoutSeconds)
	}
	if c.Backend.IdleConnections < 0 {
		return fmt.Errorf("backend.idle_connections must be non-negative; got %d", c.Backend.IdleConnections)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 || c.Log.EventBuffer < 0 {
		return fmt.Errorf("log rotation and buffer settings must be non-negative")
	}

	switch strings.ToLower(c.Engine.MissingHost) {
	case MissingHostRedirect, MissingHostReject, "":
		// valid
	default:
		return fmt.Errorf("engine.missing_host must be one of: redirect, reject; got %q", c.Engine.MissingHost)
	}

	// Backend is optional; when set it must be an absolute http(s) URL.
	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil {
			return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend.base_url must use http or https; got %q", c.Backend.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("backend.base_url must include a host; got %q", c.Backend.BaseURL)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/healthz", "/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port in address %q", addr)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if len(c.Server.Listeners) == 0 {
		c.Server.Listeners = []string{"0.0.0.0:80"}
	}
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = "127.0.0.1:9090"
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Engine.RedirectStatusCode == 0 {
		c.Engine.RedirectStatusCode = engine.DefaultRedirectStatusCode
	}
	if c.Engine.HTTPSPort == 0 {
		c.Engine.HTTPSPort = engine.DefaultHTTPSPort
	}
	if c.Engine.RedirectEnabled == nil {
		enabled := true
		c.Engine.RedirectEnabled = &enabled
	}
	if c.Engine.SecurePorts == nil {
		ports := []int{engine.DefaultHTTPSPort}
		c.Engine.SecurePorts = &ports
	}
	if c.Engine.ExemptionPatterns == nil {
		patterns := engine.DefaultExemptionPatterns()
		c.Engine.ExemptionPatterns = &patterns
	}
	c.Engine.MissingHost = strings.ToLower(c.Engine.MissingHost)
	if c.Engine.MissingHost == "" {
		c.Engine.MissingHost = MissingHostRedirect
	}
	c.Engine.SecurityHeaders.setDefaults()
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 60
	}
	if c.Backend.IdleConnections == 0 {
		c.Backend.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 14
	}
	if c.Log.EventBuffer == 0 {
		c.Log.EventBuffer = 1024
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (s *SecurityHeadersConfig) setDefaults() {
	defaults := make(map[string]string)
	for _, h := range engine.DefaultSecurityHeaders() {
		defaults[h.Name] = h.Value
	}
	for _, f := range []struct {
		name  string
		value **string
	}{
		{engine.HeaderHSTS, &s.StrictTransportSecurity},
		{engine.HeaderFrameOptions, &s.XFrameOptions},
		{engine.HeaderContentTypeOptions, &s.XContentTypeOptions},
		{engine.HeaderXSSProtection, &s.XXSSProtection},
		{engine.HeaderReferrerPolicy, &s.ReferrerPolicy},
	} {
		if *f.value == nil {
			v := defaults[f.name]
			*f.value = &v
		}
	}
}

// ToEngine builds the immutable engine configuration. Call it only on a
// loaded Config; unset pointer fields fall back to engine defaults.
func (c *Config) ToEngine() *engine.Config {
	cfg := engine.DefaultConfig()
	if c.Engine.RedirectStatusCode != 0 {
		cfg.RedirectStatusCode = c.Engine.RedirectStatusCode
	}
	if c.Engine.HTTPSPort != 0 {
		cfg.HTTPSPort = c.Engine.HTTPSPort
	}
	if c.Engine.RedirectEnabled != nil {
		cfg.RedirectEnabled = *c.Engine.RedirectEnabled
	}
	if c.Engine.SecurePorts != nil {
		cfg.SecurePorts = append([]int(nil), *c.Engine.SecurePorts...)
	}
	if c.Engine.ExemptionPatterns != nil {
		cfg.ExemptionPatterns = append([]string(nil), *c.Engine.ExemptionPatterns...)
	}

	sh := c.Engine.SecurityHeaders
	cfg.SecurityHeadersEnabled = sh.Enabled
	headers := make([]engine.Header, 0, len(cfg.SecurityHeaders))
	for _, h := range cfg.SecurityHeaders {
		var v *string
		switch h.Name {
		case engine.HeaderHSTS:
			v = sh.StrictTransportSecurity
		case engine.HeaderFrameOptions:
			v = sh.XFrameOptions
		case engine.HeaderContentTypeOptions:
			v = sh.XContentTypeOptions
		case engine.HeaderXSSProtection:
			v = sh.XXSSProtection
		case engine.HeaderReferrerPolicy:
			v = sh.ReferrerPolicy
		}
		if v != nil {
			h.Value = *v
		}
		headers = append(headers, h)
	}
	cfg.SecurityHeaders = headers

	return cfg
}

// RejectMissingHost reports whether HTTP-context requests without a Host
// header are answered with 400 instead of an empty-authority redirect.
func (c *Config) RejectMissingHost() bool {
	return c.Engine.MissingHost == MissingHostReject
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FilePath returns the resolved path of the loaded config file.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is writable by group or
// others. Anyone able to write it controls where clients are redirected.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		logger.Warn("config file is writable by group/others; consider chmod 644",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
