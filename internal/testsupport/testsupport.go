// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"personpipe/internal/config"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory so tests never touch real user paths.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "persons.db")
	cfg.Logging.Dir = filepath.Join(dir, "logs")
	cfg.Metrics.Enabled = false

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}
