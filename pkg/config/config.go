package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvLocal is the development environment name. Secrets may be omitted locally.
const EnvLocal = "local"

// Config holds all configuration for ekaya-admin.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (session secret, redis password) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3444"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Upstream products API
	API APIConfig `yaml:"api"`

	// Login/logout behaviour
	Auth AuthConfig `yaml:"auth"`

	// CookieDomain is the domain for the browser cookie (optional).
	// If empty, it will be auto-derived from BaseURL.
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	// SessionSecret signs the browser cookie. Any passphrase; it is hashed to a 32-byte key.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML

	// Redis configuration. When Host is empty tokens are held in memory.
	Redis RedisConfig `yaml:"redis"`

	// MetricsEnabled exposes /metrics for Prometheus scraping.
	MetricsEnabled bool `yaml:"metrics_enabled" env:"METRICS_ENABLED" env-default:"true"`
}

// APIConfig describes the remote products API.
type APIConfig struct {
	// BaseURL is the scheme+host the dashboard talks to, e.g. https://api.example.com.
	BaseURL string `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:8080"`
	// Timeout bounds every outgoing request (logout included).
	Timeout time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`
}

// AuthConfig holds login flow settings.
type AuthConfig struct {
	// LoginTimeout is how long a login submission may take before it is reported as timed out.
	LoginTimeout time.Duration `yaml:"login_timeout" env:"LOGIN_TIMEOUT" env-default:"10s"`
	// RedirectDelay is how long the success message is shown before redirecting to the grid.
	RedirectDelay time.Duration `yaml:"redirect_delay" env:"REDIRECT_DELAY" env-default:"1s"`
	// LoginRateLimit is a ulule/limiter formatted rate for POST /login per client IP ("20-M").
	// Empty disables rate limiting.
	LoginRateLimit string `yaml:"login_rate_limit" env:"LOGIN_RATE_LIMIT" env-default:"20-M"`
}

// RedisConfig holds Redis connection settings for the token store.
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int           `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	TTL      time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"168h"`
}

// Addr returns host:port.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; environment variables and defaults apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := validateAPIBaseURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api.base_url: %w", err)
	}
	if c.SessionSecret == "" && c.Env != EnvLocal {
		return fmt.Errorf("SESSION_SECRET must be set when env is %q", c.Env)
	}
	if c.Auth.LoginTimeout <= 0 {
		return fmt.Errorf("auth.login_timeout must be positive")
	}
	if c.Auth.RedirectDelay < 0 {
		return fmt.Errorf("auth.redirect_delay must not be negative")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func validateAPIBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// IsLocal reports whether the server runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal
}
