package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3010
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownGrace bounds how long in-flight HTTP requests may drain.
	ShutdownGrace time.Duration // default: 5s
}

// BrowserConfig controls how each per-request browser is launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin pins the Chromium binary. When set, no other channel is tried.
	BrowserBin string

	// Proxy is passed to --proxy-server for every launch.
	Proxy string

	// BlockMedia aborts audio/video requests.
	BlockMedia bool // default: true
}

// ScraperConfig controls the scrape engine's time budgets.
type ScraperConfig struct {
	// Timeout is the wall-clock budget for one scrape.
	Timeout time.Duration // default: 240s

	// NavigationTimeout bounds one navigation attempt up to DOMContentLoaded.
	NavigationTimeout time.Duration // default: 30s

	// NavigationAttempts is the total attempt budget, first try included.
	NavigationAttempts int // default: 3

	// IdleTimeout bounds each best-effort network-idle wait.
	IdleTimeout time.Duration // default: 8s

	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration // default: 3s

	// RetryJitter is the upper bound of random delay added to each backoff.
	RetryJitter time.Duration // default: 2s

	// ChallengeDeadline bounds the navigation/polling race.
	ChallengeDeadline time.Duration // default: 30s

	// ChallengePoll is the content re-sample interval during the race.
	ChallengePoll time.Duration // default: 1.5s

	// MaxExtraWait caps how much of the request's waitFor is actually slept.
	MaxExtraWait time.Duration // default: 5s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// Enabled toggles the limiter.
	Enabled bool // default: false

	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// JobsConfig controls the async job ledger.
type JobsConfig struct {
	// TTL is how long terminal jobs are retained. 0 keeps them forever.
	TTL time.Duration // default: 1h

	// SweepInterval is how often expired jobs are dropped.
	SweepInterval time.Duration // default: 5m
}

// WebhookConfig controls outbound job notifications.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          envOr("PAGESIFT_HOST", "0.0.0.0"),
			Port:          envIntOr("PAGESIFT_PORT", envIntOr("PORT", 3010)),
			Mode:          envOr("PAGESIFT_MODE", "release"),
			ShutdownGrace: envDurationOr("PAGESIFT_SHUTDOWN_GRACE", 5*time.Second),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("PAGESIFT_HEADLESS", true),
			NoSandbox:  envBoolOr("PAGESIFT_NO_SANDBOX", true),
			BrowserBin: os.Getenv("PAGESIFT_BROWSER_BIN"),
			Proxy:      os.Getenv("PAGESIFT_PROXY"),
			BlockMedia: envBoolOr("PAGESIFT_BLOCK_MEDIA", true),
		},
		Scraper: ScraperConfig{
			Timeout:            envDurationOr("PAGESIFT_SCRAPE_TIMEOUT", 240*time.Second),
			NavigationTimeout:  envDurationOr("PAGESIFT_NAV_TIMEOUT", 30*time.Second),
			NavigationAttempts: envIntOr("PAGESIFT_NAV_ATTEMPTS", 3),
			IdleTimeout:        envDurationOr("PAGESIFT_IDLE_TIMEOUT", 8*time.Second),
			RetryBackoff:       envDurationOr("PAGESIFT_RETRY_BACKOFF", 3*time.Second),
			RetryJitter:        envDurationOr("PAGESIFT_RETRY_JITTER", 2*time.Second),
			ChallengeDeadline:  envDurationOr("PAGESIFT_CHALLENGE_DEADLINE", 30*time.Second),
			ChallengePoll:      envDurationOr("PAGESIFT_CHALLENGE_POLL", 1500*time.Millisecond),
			MaxExtraWait:       envDurationOr("PAGESIFT_MAX_EXTRA_WAIT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PAGESIFT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PAGESIFT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			Enabled:           envBoolOr("PAGESIFT_RATE_ENABLED", false),
			RequestsPerSecond: envFloatOr("PAGESIFT_RATE_RPS", 5.0),
			Burst:             envIntOr("PAGESIFT_RATE_BURST", 10),
		},
		Jobs: JobsConfig{
			TTL:           envDurationOr("PAGESIFT_JOB_TTL", time.Hour),
			SweepInterval: envDurationOr("PAGESIFT_JOB_SWEEP", 5*time.Minute),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("PAGESIFT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PAGESIFT_LOG_LEVEL", "info"),
			Format: envOr("PAGESIFT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
