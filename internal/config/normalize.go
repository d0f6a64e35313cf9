package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeResolver()
	c.normalizeFetch()
	c.normalizeLedger()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Manifest) == "" {
		c.Paths.Manifest = defaultManifestPath
	}
	if c.Paths.Manifest, err = expandPath(strings.TrimSpace(c.Paths.Manifest)); err != nil {
		return fmt.Errorf("paths.manifest: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogFile, err = expandPath(strings.TrimSpace(c.Paths.LogFile)); err != nil {
		return fmt.Errorf("paths.log_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeResolver() {
	if c.Resolver.Attempts == 0 {
		c.Resolver.Attempts = defaultResolverAttempts
	}
	c.Resolver.Index = strings.ToLower(strings.TrimSpace(c.Resolver.Index))
	if c.Resolver.Index == "" {
		c.Resolver.Index = defaultIndexBackend
	}
	c.Resolver.ScanCommand = strings.TrimSpace(c.Resolver.ScanCommand)
	if c.Resolver.ScanCommand == "" {
		c.Resolver.ScanCommand = defaultScanCommand
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.Endpoint = strings.TrimSpace(c.Fetch.Endpoint)
	if c.Fetch.Endpoint == "" || c.Fetch.Endpoint == defaultFetchEndpoint {
		if value, ok := os.LookupEnv("HF_ENDPOINT"); ok && strings.TrimSpace(value) != "" {
			c.Fetch.Endpoint = strings.TrimSpace(value)
		}
	}
	if c.Fetch.Endpoint == "" {
		c.Fetch.Endpoint = defaultFetchEndpoint
	}
	c.Fetch.Endpoint = strings.TrimRight(c.Fetch.Endpoint, "/")
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
}

func (c *Config) normalizeLedger() {
	if c.Ledger.HistoryLimit <= 0 {
		c.Ledger.HistoryLimit = defaultHistoryListLimit
	}
	if c.Ledger.Retain <= 0 {
		c.Ledger.Retain = defaultLedgerRetain
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
