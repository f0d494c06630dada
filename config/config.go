package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lukman83/pricewatch/internal/httputil"
	"github.com/lukman83/pricewatch/internal/store"
)

// Config holds all application configuration.
type Config struct {
	// General
	CatalogPath   string
	Interval      time.Duration
	Threshold     float64 // relative move recorded as history
	RespectRobots bool
	DelayProfile  string // "none", "aggressive", "normal", "cautious"

	// Fetching
	Retries       int
	Timeout       time.Duration
	Backoff       time.Duration
	RatePerSecond float64
	RateBurst     int
	MaxConcurrent int // 0 runs every pair at once
	ProxyFile     string

	// Storage
	StoreBackend string // "memory", "postgres", "redis"; empty picks from the URLs
	DatabaseURL  string
	RedisURL     string
	HistoryLimit int

	// HTTP server
	HTTPPort string
	APIKey   string

	// Notifications
	NtfyServer string
	NtfyTopic  string
	EmailHost  string
	EmailPort  int
	EmailUser  string
	EmailPass  string
	EmailTo    string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CatalogPath:   "products.yaml",
		Interval:      30 * time.Minute,
		Threshold:     0.05,
		RespectRobots: false,
		DelayProfile:  "none",
		Retries:       httputil.DefaultRetries,
		Timeout:       httputil.DefaultTimeout,
		Backoff:       httputil.DefaultBackoff,
		RatePerSecond: 2.0,
		RateBurst:     5,
		HistoryLimit:  store.DefaultRetention,
		HTTPPort:      "8080",
		NtfyServer:    "https://ntfy.sh",
		EmailPort:     587,
	}
}

// LoadFromEnv loads .env file (if present) then overrides config from environment variables.
func (c *Config) LoadFromEnv() error {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	if v := os.Getenv("PRICEWATCH_CATALOG"); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv("PRICEWATCH_DELAY_PROFILE"); v != "" {
		c.DelayProfile = v
	}
	if v := os.Getenv("PRICEWATCH_PROXIES"); v != "" {
		c.ProxyFile = v
	}
	if v := os.Getenv("PRICEWATCH_RESPECT_ROBOTS"); v != "" {
		c.RespectRobots = v == "true" || v == "1"
	}
	if v := os.Getenv("PRICEWATCH_STORE"); v != "" {
		c.StoreBackend = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.HTTPPort = v
	}
	if v := os.Getenv("PRICEWATCH_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("NTFY_SERVER"); v != "" {
		c.NtfyServer = v
	}
	if v := os.Getenv("NTFY_TOPIC"); v != "" {
		c.NtfyTopic = v
	}
	if v := os.Getenv("EMAIL_HOST"); v != "" {
		c.EmailHost = v
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		c.EmailUser = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		c.EmailPass = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		c.EmailTo = v
	}

	var errs []string
	note := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	note(envInt("PRICEWATCH_RETRIES", &c.Retries))
	note(envInt("PRICEWATCH_RATE_BURST", &c.RateBurst))
	note(envInt("PRICEWATCH_MAX_CONCURRENT", &c.MaxConcurrent))
	note(envInt("PRICEWATCH_HISTORY_LIMIT", &c.HistoryLimit))
	note(envInt("EMAIL_PORT", &c.EmailPort))
	note(envFloat("PRICEWATCH_RATE_PER_SECOND", &c.RatePerSecond))
	note(envFloat("PRICEWATCH_THRESHOLD", &c.Threshold))
	note(envDuration("PRICEWATCH_TIMEOUT", &c.Timeout))
	note(envDuration("PRICEWATCH_BACKOFF", &c.Backoff))
	note(envDuration("PRICEWATCH_INTERVAL", &c.Interval))
	if os.Getenv("PRICEWATCH_INTERVAL") == "" {
		// CHECK_INTERVAL is a plain number of minutes.
		if v := os.Getenv("CHECK_INTERVAL"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				errs = append(errs, fmt.Sprintf("CHECK_INTERVAL: want a positive number of minutes, got %q", v))
			} else {
				c.Interval = time.Duration(n) * time.Minute
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Backend returns the store backend to use. An explicit StoreBackend wins;
// otherwise a configured DATABASE_URL selects Postgres and REDIS_URL selects
// Redis.
func (c *Config) Backend() string {
	switch {
	case c.StoreBackend != "":
		return c.StoreBackend
	case c.DatabaseURL != "":
		return store.BackendPostgres
	case c.RedisURL != "":
		return store.BackendRedis
	default:
		return store.BackendMemory
	}
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	opts := store.Options{Backend: c.Backend(), Retention: c.HistoryLimit}
	switch opts.Backend {
	case store.BackendPostgres:
		opts.URL = c.DatabaseURL
	case store.BackendRedis:
		opts.URL = c.RedisURL
	}
	return opts
}

// EmailRecipients splits EMAIL_TO on commas.
func (c *Config) EmailRecipients() []string {
	var out []string
	for _, addr := range strings.Split(c.EmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Validate rejects settings the monitor cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	case c.Threshold <= 0 || c.Threshold >= 1:
		return fmt.Errorf("threshold must be between 0 and 1, got %v", c.Threshold)
	case c.Retries < 1:
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	case c.RatePerSecond > 0 && c.RateBurst < 1:
		return fmt.Errorf("rate burst must be at least 1 when rate limiting, got %d", c.RateBurst)
	case c.MaxConcurrent < 0:
		return fmt.Errorf("max concurrent must not be negative, got %d", c.MaxConcurrent)
	case c.HistoryLimit < 1:
		return fmt.Errorf("history limit must be at least 1, got %d", c.HistoryLimit)
	}
	switch c.DelayProfile {
	case "none", "aggressive", "normal", "cautious":
	default:
		return fmt.Errorf("unknown delay profile %q", c.DelayProfile)
	}
	switch c.Backend() {
	case store.BackendMemory:
	case store.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("postgres store needs DATABASE_URL")
		}
	case store.BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis store needs REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
