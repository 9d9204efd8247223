package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fhsinchy/geb-deals/internal/infrastructure/marketplace"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Marketplace MarketplaceConfig
	Search      SearchConfig
	RateLimit   RateLimitConfig
	Metrics     MetricsConfig
	Log         LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"` // IPs or CIDRs allowed to set X-Forwarded-For
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MarketplaceConfig holds the search page fetcher and link settings
type MarketplaceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SearchPath     string        `mapstructure:"search_path"`
	Category       string        `mapstructure:"category"`
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Accept         string        `mapstructure:"accept"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	AcceptEncoding string        `mapstructure:"accept_encoding"`
	Fingerprint    string        `mapstructure:"fingerprint"`
	TrackingParams []string      `mapstructure:"tracking_params"`
}

// SearchConfig holds query handling limits
type SearchConfig struct {
	MaxQueryLength int `mapstructure:"max_query_length"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP   int           `mapstructure:"per_ip"` // requests per minute, 0 disables
	Burst   int           `mapstructure:"burst"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// supportedEncodings are the content codings the marketplace client can decode
var supportedEncodings = map[string]bool{
	"gzip":     true,
	"x-gzip":   true,
	"deflate":  true,
	"br":       true,
	"identity": true,
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/geb-deals/")

	// Environment variable settings, e.g. GEBDEALS_MARKETPLACE_TIMEOUT
	v.SetEnvPrefix("GEBDEALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.shutdown_timeout", "10s")

	// Marketplace defaults
	v.SetDefault("marketplace.base_url", "https://www.amazon.com")
	v.SetDefault("marketplace.search_path", "/s")
	v.SetDefault("marketplace.category", "digital-text")
	v.SetDefault("marketplace.timeout", "15s")
	v.SetDefault("marketplace.user_agent", defaultUserAgent)
	v.SetDefault("marketplace.accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	v.SetDefault("marketplace.accept_language", "en-US,en;q=0.9")
	v.SetDefault("marketplace.accept_encoding", "")
	v.SetDefault("marketplace.fingerprint", "chrome")
	v.SetDefault("marketplace.tracking_params", marketplace.DefaultTrackingParams)

	// Search defaults
	v.SetDefault("search.max_query_length", 200)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.idle_ttl", "10m")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required (set GEBDEALS_SERVER_PORT)")
	}

	for _, proxy := range config.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("trusted proxy must be an IP or CIDR, got: %q", proxy)
			}
		}
	}

	u, err := url.Parse(config.Marketplace.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("marketplace base URL must be an absolute http(s) URL, got: %q", config.Marketplace.BaseURL)
	}

	if config.Marketplace.Timeout <= 0 {
		return fmt.Errorf("marketplace timeout must be positive, got: %s", config.Marketplace.Timeout)
	}

	if err := validateAcceptEncoding(config.Marketplace.AcceptEncoding); err != nil {
		return err
	}

	if !marketplace.ValidFingerprint(marketplace.Fingerprint(config.Marketplace.Fingerprint)) {
		return fmt.Errorf("marketplace fingerprint must be one of chrome, firefox, safari, go, got: %s", config.Marketplace.Fingerprint)
	}

	if config.RateLimit.PerIP < 0 || config.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}

	// A zero TTL would hand every request a fresh limiter
	if config.RateLimit.PerIP > 0 && config.RateLimit.IdleTTL <= 0 {
		return fmt.Errorf("rate limit idle TTL must be positive when limiting is enabled, got: %s", config.RateLimit.IdleTTL)
	}

	if config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got: %s", config.Log.Format)
	}

	return nil
}

// validateAcceptEncoding rejects codings the client could not decode, since
// their bodies would reach the parser still compressed.
func validateAcceptEncoding(header string) error {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	for _, part := range strings.Split(header, ",") {
		coding, _, _ := strings.Cut(part, ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if !supportedEncodings[coding] {
			return fmt.Errorf("marketplace accept encoding %q is not supported (use gzip, deflate, br or identity)", coding)
		}
	}
	return nil
}

// RequestHeaders returns the headers sent with every marketplace request.
// Blank values are left out.
func (m MarketplaceConfig) RequestHeaders() map[string]string {
	headers := map[string]string{
		"User-Agent":      m.UserAgent,
		"Accept":          m.Accept,
		"Accept-Language": m.AcceptLanguage,
		"Accept-Encoding": m.AcceptEncoding,
	}
	for k, v := range headers {
		if v == "" {
			delete(headers, k)
		}
	}
	return headers
}
