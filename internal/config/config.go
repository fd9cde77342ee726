package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rtuszik/discogsdash/internal/constants"
)

// ConfigPathEnvVar names the variable pointing at an optional YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Discogs  DiscogsConfig  `koanf:"discogs"`
	Sync     SyncConfig     `koanf:"sync"`
	Retry    RetryConfig    `koanf:"retry"`
	Pricing  PricingConfig  `koanf:"pricing"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DiscogsConfig identifies the collection owner and the registered
// application used for signing.
type DiscogsConfig struct {
	Username          string `koanf:"username"`
	ConsumerKey       string `koanf:"consumer_key"`
	ConsumerSecret    string `koanf:"consumer_secret"`
	UserAgent         string `koanf:"user_agent"`
	APIURL            string `koanf:"api_url"`
	AuthorizeURL      string `koanf:"authorize_url"`
	RequestsPerMinute int    `koanf:"requests_per_minute"`
}

type SyncConfig struct {
	// Schedule is a 5-field cron expression. Empty disables the timer.
	Schedule string `koanf:"schedule"`
	PageSize int    `koanf:"page_size"`
}

type RetryConfig struct {
	MaxRetries      int           `koanf:"max_retries"`
	BaseDelay       time.Duration `koanf:"base_delay"`
	MaxDelay        time.Duration `koanf:"max_delay"`
	Multiplier      float64       `koanf:"multiplier"`
	Jitter          time.Duration `koanf:"jitter"`
	RateLimitBuffer time.Duration `koanf:"rate_limit_buffer"`
}

// PricingConfig tunes per-release value lookups.
type PricingConfig struct {
	// CacheTTL keeps suggestions between runs. Zero disables the cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`
	// ConditionPriority overrides the default grade preference order.
	ConditionPriority []string `koanf:"condition_priority"`
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: constants.DefaultPort},
		Database: DatabaseConfig{Path: constants.DefaultDBPath},
		Log:      LogConfig{Level: "info", Format: "text"},
		Discogs: DiscogsConfig{
			UserAgent:         constants.DefaultUserAgent,
			APIURL:            constants.DefaultAPIBaseURL,
			AuthorizeURL:      constants.DefaultAuthorizeURL,
			RequestsPerMinute: constants.DefaultRequestsPerMinute,
		},
		Sync: SyncConfig{PageSize: constants.DefaultPageSize},
		Retry: RetryConfig{
			MaxRetries:      constants.DefaultRetryCount,
			BaseDelay:       constants.DefaultRetryBase,
			MaxDelay:        constants.DefaultRetryMax,
			Multiplier:      constants.DefaultRetryMultiplier,
			Jitter:          constants.DefaultRetryJitter,
			RateLimitBuffer: constants.DefaultRateLimitBuffer,
		},
		Pricing: PricingConfig{CacheTTL: constants.DefaultPriceCacheTTL},
	}
}

// envMappings maps environment variable names to koanf paths. Anything not
// listed is ignored.
var envMappings = map[string]string{
	"PORT":                        "server.port",
	"DB_PATH":                     "database.path",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"DISCOGS_USERNAME":            "discogs.username",
	"DISCOGS_CONSUMER_KEY":        "discogs.consumer_key",
	"DISCOGS_CONSUMER_SECRET":     "discogs.consumer_secret",
	"DISCOGS_USER_AGENT":          "discogs.user_agent",
	"DISCOGS_API_URL":             "discogs.api_url",
	"DISCOGS_AUTHORIZE_URL":       "discogs.authorize_url",
	"DISCOGS_REQUESTS_PER_MINUTE": "discogs.requests_per_minute",
	"SYNC_SCHEDULE":               "sync.schedule",
	"SYNC_PAGE_SIZE":              "sync.page_size",
	"RETRY_MAX_RETRIES":           "retry.max_retries",
	"RETRY_BASE_DELAY":            "retry.base_delay",
	"RETRY_MAX_DELAY":             "retry.max_delay",
	"RETRY_MULTIPLIER":            "retry.multiplier",
	"RETRY_JITTER":                "retry.jitter",
	"RETRY_RATE_LIMIT_BUFFER":     "retry.rate_limit_buffer",
	"PRICE_CACHE_TTL":             "pricing.cache_ttl",
	"PRICE_CONDITION_PRIORITY":    "pricing.condition_priority",
}

func envTransformFunc(key string) string {
	return envMappings[key]
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing priority, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitList(k, "pricing.condition_priority"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Discogs.Username = strings.TrimSpace(cfg.Discogs.Username)
	cfg.Sync.Schedule = strings.TrimSpace(cfg.Sync.Schedule)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList turns a comma separated env value into a trimmed list.
func splitList(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var items []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	if err := k.Set(path, items); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate validates the configuration and returns detailed errors.
// Catalog identity is not required here; a sync run reports it missing.
func (c *Config) Validate() error {
	var errors []string

	// Validate Port
	if c.Server.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Server.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.Database.Path == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.Log.Level))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.Log.Format))
	}

	urls := []struct{ name, raw string }{
		{"DISCOGS_API_URL", c.Discogs.APIURL},
		{"DISCOGS_AUTHORIZE_URL", c.Discogs.AuthorizeURL},
	}
	for _, u := range urls {
		parsed, err := url.Parse(u.raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %q", u.name, u.raw))
		}
	}

	if c.Discogs.UserAgent == "" {
		errors = append(errors, "DISCOGS_USER_AGENT cannot be empty")
	}
	if c.Discogs.RequestsPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("DISCOGS_REQUESTS_PER_MINUTE cannot be negative, got: %d", c.Discogs.RequestsPerMinute))
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > constants.DefaultPageSize {
		errors = append(errors, fmt.Sprintf("SYNC_PAGE_SIZE must be between 1 and %d, got: %d", constants.DefaultPageSize, c.Sync.PageSize))
	}

	if c.Retry.MaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("RETRY_MAX_RETRIES cannot be negative, got: %d", c.Retry.MaxRetries))
	}
	if c.Retry.BaseDelay <= 0 {
		errors = append(errors, fmt.Sprintf("RETRY_BASE_DELAY must be positive, got: %s", c.Retry.BaseDelay))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errors = append(errors, fmt.Sprintf("RETRY_MAX_DELAY must be at least RETRY_BASE_DELAY, got: %s", c.Retry.MaxDelay))
	}
	if c.Retry.Multiplier < 1 {
		errors = append(errors, fmt.Sprintf("RETRY_MULTIPLIER must be at least 1, got: %g", c.Retry.Multiplier))
	}
	if c.Pricing.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("PRICE_CACHE_TTL cannot be negative, got: %s", c.Pricing.CacheTTL))
	}
	if c.Retry.Jitter < 0 || c.Retry.RateLimitBuffer < 0 {
		errors = append(errors, "RETRY_JITTER and RETRY_RATE_LIMIT_BUFFER cannot be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// CatalogConfigured reports whether the catalog identity is complete.
func (c *Config) CatalogConfigured() bool {
	return c.Discogs.Username != "" && c.Discogs.ConsumerKey != "" && c.Discogs.ConsumerSecret != ""
}
