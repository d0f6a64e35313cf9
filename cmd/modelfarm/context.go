package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"modelfarm/internal/config"
	"modelfarm/internal/failure"
	"modelfarm/internal/ledger"
	"modelfarm/internal/logging"
	"modelfarm/internal/manifest"
	"modelfarm/internal/workflow"
)

type globalFlags struct {
	config    string
	manifest  string
	logLevel  string
	logFormat string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = failure.Wrap(failure.ErrConfig, "cli", "load settings", "", err)
			return
		}
		if manifestPath := strings.TrimSpace(c.flags.manifest); manifestPath != "" {
			expanded, err := config.ExpandPath(manifestPath)
			if err != nil {
				c.configErr = failure.Wrap(failure.ErrConfig, "cli", "resolve manifest path", manifestPath, err)
				return
			}
			cfg.Paths.Manifest = expanded
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.Logging.Level = level
		}
		if format := strings.TrimSpace(c.flags.logFormat); format != "" {
			cfg.Logging.Format = format
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Writer:   cmd.ErrOrStderr(),
		FilePath: cfg.Paths.LogFile,
	})
	if err != nil {
		return nil, failure.Wrap(failure.ErrConfig, "cli", "create logger", "", err)
	}
	return logger, nil
}

func (c *commandContext) loadManifest() (*manifest.Manifest, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return manifest.Load(cfg.Paths.Manifest)
}

// openLedger returns nil when the ledger is disabled or cannot be opened; a
// broken ledger must not block downloads.
func (c *commandContext) openLedger(logger *slog.Logger) *ledger.Store {
	cfg, err := c.ensureConfig()
	if err != nil || !cfg.Ledger.Enabled {
		return nil
	}
	err = cfg.EnsureDirectories()
	var store *ledger.Store
	if err == nil {
		store, err = ledger.Open(cfg.LedgerPath())
	}
	if err != nil {
		logging.WarnWithContext(logger, "run ledger unavailable", "ledger_open_failed",
			logging.String(logging.FieldPath, cfg.LedgerPath()),
			logging.String(logging.FieldImpact, "this run will not appear in history"),
			logging.Error(err),
		)
		return nil
	}
	return store
}

// withManager loads the manifest and runs fn with a manager wired to the
// configured hub and cache index. The ledger is opened only when record is
// set, so read-only commands leave the state directory alone.
func (c *commandContext) withManager(cmd *cobra.Command, record bool, fn func(*workflow.Manager, *manifest.Manifest) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return err
	}
	m, err := c.loadManifest()
	if err != nil {
		return err
	}
	var opts []workflow.ManagerOption
	if record {
		if store := c.openLedger(logger); store != nil {
			defer store.Close()
			opts = append(opts, workflow.WithLedger(store))
		}
	}
	return fn(workflow.NewManager(cfg, logger, opts...), m)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
