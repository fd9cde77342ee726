package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rtuszik/discogsdash/internal/constants"
)

func TestLoad(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != constants.DefaultPort {
		t.Errorf("Expected Port to be %s, got %s", constants.DefaultPort, cfg.Server.Port)
	}
	if cfg.Database.Path != constants.DefaultDBPath {
		t.Errorf("Expected DBPath to be %s, got %s", constants.DefaultDBPath, cfg.Database.Path)
	}
	if cfg.Discogs.APIURL != constants.DefaultAPIBaseURL {
		t.Errorf("Expected APIURL to be %s, got %s", constants.DefaultAPIBaseURL, cfg.Discogs.APIURL)
	}
	if cfg.Retry.MaxRetries != constants.DefaultRetryCount || cfg.Retry.BaseDelay != constants.DefaultRetryBase {
		t.Errorf("Unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Sync.Schedule != "" {
		t.Errorf("Expected the timer to be disabled by default, got %q", cfg.Sync.Schedule)
	}
	if cfg.CatalogConfigured() {
		t.Error("Expected catalog identity to be unset")
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("DISCOGS_USERNAME", " alice ")
	t.Setenv("DISCOGS_CONSUMER_KEY", "ck")
	t.Setenv("DISCOGS_CONSUMER_SECRET", "cs")
	t.Setenv("SYNC_SCHEDULE", "0 3 * * *")
	t.Setenv("RETRY_MAX_RETRIES", "5")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("RETRY_MULTIPLIER", "1.5")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected Port to be 9090, got %s", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Expected DBPath to be /tmp/test.db, got %s", cfg.Database.Path)
	}
	if cfg.Discogs.Username != "alice" {
		t.Errorf("Expected trimmed username, got %q", cfg.Discogs.Username)
	}
	if cfg.Sync.Schedule != "0 3 * * *" {
		t.Errorf("Expected schedule, got %q", cfg.Sync.Schedule)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.BaseDelay != 250*time.Millisecond || cfg.Retry.Multiplier != 1.5 {
		t.Errorf("Unexpected retry config: %+v", cfg.Retry)
	}
	if !cfg.CatalogConfigured() {
		t.Error("Expected catalog identity to be configured")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"7070\"\ndiscogs:\n  username: bob\nsync:\n  page_size: 50\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("DISCOGS_USERNAME", "carol")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Sync.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", cfg.Sync.PageSize)
	}
	if cfg.Discogs.Username != "carol" {
		t.Errorf("Expected env to override file, got %q", cfg.Discogs.Username)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults valid", func(c *Config) {}, ""},
		{"unconfigured catalog is valid", func(c *Config) { c.Discogs.Username = "" }, ""},
		{"invalid port", func(c *Config) { c.Server.Port = "abc" }, "PORT must be a valid number"},
		{"port out of range", func(c *Config) { c.Server.Port = "70000" }, "PORT must be between"},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, "DB_PATH cannot be empty"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "LOG_LEVEL"},
		{"bad api url", func(c *Config) { c.Discogs.APIURL = "not a url" }, "DISCOGS_API_URL"},
		{"page size too large", func(c *Config) { c.Sync.PageSize = 101 }, "SYNC_PAGE_SIZE"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "RETRY_MAX_RETRIES"},
		{"max below base", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "RETRY_MAX_DELAY"},
		{"multiplier below one", func(c *Config) { c.Retry.Multiplier = 0.5 }, "RETRY_MULTIPLIER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = ""
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "PORT cannot be empty") || !strings.Contains(err.Error(), "LOG_FORMAT") {
		t.Errorf("Expected both problems listed, got %v", err)
	}
}

func TestLoad_PricingOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("PRICE_CACHE_TTL", "0s")
	t.Setenv("PRICE_CONDITION_PRIORITY", "Near Mint (NM or M-), Mint (M) ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pricing.CacheTTL != 0 {
		t.Errorf("Expected cache disabled, got %s", cfg.Pricing.CacheTTL)
	}
	want := []string{"Near Mint (NM or M-)", "Mint (M)"}
	if len(cfg.Pricing.ConditionPriority) != len(want) {
		t.Fatalf("priority = %q", cfg.Pricing.ConditionPriority)
	}
	for i := range want {
		if cfg.Pricing.ConditionPriority[i] != want[i] {
			t.Errorf("priority[%d] = %q, want %q", i, cfg.Pricing.ConditionPriority[i], want[i])
		}
	}
}
