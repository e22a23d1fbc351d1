package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample config: %v", err)
	}
	if !exists {
		t.Fatal("sample config not reported as existing")
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}

	defaults := Default()
	if cfg.API.BaseURL != defaults.API.BaseURL {
		t.Errorf("sample base_url = %q, want default %q", cfg.API.BaseURL, defaults.API.BaseURL)
	}
	if cfg.API.MaxRetries != defaults.API.MaxRetries {
		t.Errorf("sample max_retries = %d, want %d", cfg.API.MaxRetries, defaults.API.MaxRetries)
	}
	if cfg.Ingest.BatchSize != defaults.Ingest.BatchSize {
		t.Errorf("sample batch_size = %d, want %d", cfg.Ingest.BatchSize, defaults.Ingest.BatchSize)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# existing"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("WriteSample overwrote an existing config")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.toml")

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("missing file reported as existing")
	}
	if cfg.Ingest.Total != defaultTotal {
		t.Errorf("Total = %d, want default %d", cfg.Ingest.Total, defaultTotal)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad gender", func(c *Config) { c.Ingest.Gender = "other" }, "ingest.gender"},
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }, "ingest.batch_size"},
		{"zero total", func(c *Config) { c.Ingest.Total = 0 }, "ingest.total"},
		{"bad url", func(c *Config) { c.API.BaseURL = "not a url" }, "api.base_url"},
		{"zero retries", func(c *Config) { c.API.MaxRetries = 0 }, "api.max_retries"},
		{"inverted delays", func(c *Config) { c.API.RetryMaxDelay = 0 }, "api.retry_max_delay"},
		{"zero connections", func(c *Config) { c.API.MaxConnections = 0 }, "api.max_connections"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "metrics.listen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatal(err)
			}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "` + filepath.Join(dir, "data", "p.db") + `"

[api]
base_url = "http://localhost:8111/api/v2/persons"
max_connections = 3

[ingest]
gender = "female"
total = 500
batch_size = 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.MaxConnections != 3 {
		t.Errorf("MaxConnections = %d, want 3", cfg.API.MaxConnections)
	}
	if cfg.Ingest.Gender != "female" || cfg.Ingest.Total != 500 {
		t.Errorf("ingest overrides not applied: %+v", cfg.Ingest)
	}
	// Unset values keep their defaults.
	if cfg.API.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want default %d", cfg.API.MaxRetries, defaultMaxRetries)
	}
}
