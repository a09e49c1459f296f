package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Credential store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreEnv    = "env"
)

// Rate limit strategies. Both fall back to an in-process fixed window without redis.
const (
	RateLimitSliding = "sliding"
	RateLimitFixed   = "fixed"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	BaseURL            string
	VercelURL          string
	VitePort           string
	CORSAllowedOrigins []string

	XMoneyLiveBaseURL   string
	XMoneyTestBaseURL   string
	OutboundTimeout     time.Duration
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration
	RetryMaxAttempts    int

	RedisURL              string
	CredentialsStore      string
	CredentialsAPIEnabled bool
	CredentialsFallback   bool

	SigningCanonical string
	SigningScheme    string
	SigningEncoding  string

	RateLimitStrategy string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	BodyLimitBytes    int64
	IdempotencyTTL    time.Duration

	WidgetWebhookURL     string
	WidgetWebhookSecret  string
	WidgetWebhookTopics  []string
	WidgetWebhookTimeout time.Duration

	SecurityHeaders bool
	EnableHSTS      bool
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("SERVER_PORT"), "3001"),
		BaseURL:            strings.TrimSpace(k.String("BASE_URL")),
		VercelURL:          strings.TrimSpace(k.String("VERCEL_URL")),
		VitePort:           valueOrDefault(k.String("VITE_PORT"), "5173"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		XMoneyLiveBaseURL:   strings.TrimSpace(k.String("XMONEY_LIVE_BASE_URL")),
		XMoneyTestBaseURL:   strings.TrimSpace(k.String("XMONEY_TEST_BASE_URL")),
		OutboundTimeout:     parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 5),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 1),

		RedisURL:              strings.TrimSpace(k.String("REDIS_URL")),
		CredentialsStore:      strings.ToLower(valueOrDefault(k.String("CREDENTIALS_STORE"), StoreMemory)),
		CredentialsAPIEnabled: parseBool(k.String("CREDENTIALS_API_ENABLED")),
		CredentialsFallback:   parseBool(k.String("CREDENTIALS_FALLBACK")),

		SigningCanonical: valueOrDefault(k.String("SIGNING_CANONICAL"), "insertion"),
		SigningScheme:    valueOrDefault(k.String("SIGNING_SCHEME"), "hmac-sha512"),
		SigningEncoding:  valueOrDefault(k.String("SIGNING_ENCODING"), "base64"),

		RateLimitStrategy: strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), RateLimitSliding)),
		RateLimitMax:      parseInt(k.String("RATE_LIMIT_MAX"), 60),
		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		BodyLimitBytes:    int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		WidgetWebhookURL:     strings.TrimSpace(k.String("WIDGET_WEBHOOK_URL")),
		WidgetWebhookSecret:  k.String("WIDGET_WEBHOOK_SECRET"),
		WidgetWebhookTopics:  splitAndTrim(valueOrDefault(k.String("WIDGET_WEBHOOK_TOPICS"), "widget.payment_complete")),
		WidgetWebhookTimeout: parseDuration(k.String("WIDGET_WEBHOOK_TIMEOUT"), "5s"),

		SecurityHeaders: parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		EnableHSTS:      parseBool(k.String("SECURITY_HSTS")),
		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CredentialsStore {
	case StoreMemory, StoreEnv:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when CREDENTIALS_STORE=redis")
		}
	default:
		return fmt.Errorf("CREDENTIALS_STORE must be memory, redis or env, got %q", c.CredentialsStore)
	}
	if c.CircuitFailureRatio <= 0 || c.CircuitFailureRatio > 1 {
		return fmt.Errorf("CIRCUIT_FAILURE_RATIO must be in (0,1], got %v", c.CircuitFailureRatio)
	}
	if c.RateLimitStrategy != RateLimitSliding && c.RateLimitStrategy != RateLimitFixed {
		return fmt.Errorf("RATE_LIMIT_STRATEGY must be sliding or fixed, got %q", c.RateLimitStrategy)
	}
	if c.WidgetWebhookURL != "" && c.WidgetWebhookSecret == "" {
		return errors.New("WIDGET_WEBHOOK_SECRET is required when WIDGET_WEBHOOK_URL is set")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3001"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return v
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return v
	}
	return fallback
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
