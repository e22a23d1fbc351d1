package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must be set")
	}
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url is not a valid URL: %q", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("api.request_timeout must be positive")
	}
	if c.API.MaxRetries <= 0 {
		return errors.New("api.max_retries must be positive")
	}
	if c.API.RetryBaseDelay <= 0 {
		return errors.New("api.retry_base_delay must be positive")
	}
	if c.API.RetryMaxDelay < c.API.RetryBaseDelay {
		return errors.New("api.retry_max_delay must be at least api.retry_base_delay")
	}
	if c.API.MaxConnections <= 0 {
		return errors.New("api.max_connections must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Gender != "male" && c.Ingest.Gender != "female" {
		return fmt.Errorf("ingest.gender must be male or female, got %q", c.Ingest.Gender)
	}
	if c.Ingest.Total <= 0 {
		return errors.New("ingest.total must be positive")
	}
	if c.Ingest.BatchSize <= 0 {
		return errors.New("ingest.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		return errors.New("metrics.listen must be set when metrics.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
