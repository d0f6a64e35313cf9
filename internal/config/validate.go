package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateResolver() error {
	if c.Resolver.Attempts < 1 || c.Resolver.Attempts > maxResolverAttempts {
		return fmt.Errorf("resolver.attempts must be between 1 and %d", maxResolverAttempts)
	}
	if c.Resolver.BackoffSeconds < 0 || c.Resolver.BackoffSeconds > maxResolverBackoffSeconds {
		return fmt.Errorf("resolver.backoff_seconds must be between 0 and %d", maxResolverBackoffSeconds)
	}
	switch c.Resolver.Index {
	case IndexScanCache, IndexSnapshots:
	default:
		return fmt.Errorf("resolver.index: unsupported value %q (use %q or %q)", c.Resolver.Index, IndexScanCache, IndexSnapshots)
	}
	return nil
}

func (c *Config) validateFetch() error {
	parsed, err := url.Parse(c.Fetch.Endpoint)
	if err != nil {
		return fmt.Errorf("fetch.endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("fetch.endpoint must be an http(s) url, got %q", c.Fetch.Endpoint)
	}
	if c.Fetch.TimeoutSeconds < 0 {
		return errors.New("fetch.timeout_seconds must be >= 0")
	}
	if c.Fetch.RetryDelaySeconds < 0 {
		return errors.New("fetch.retry_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
