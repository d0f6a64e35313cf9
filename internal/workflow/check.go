package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"modelfarm/internal/credential"
	"modelfarm/internal/failure"
	"modelfarm/internal/linkfarm"
	"modelfarm/internal/logging"
	"modelfarm/internal/manifest"
	"modelfarm/internal/preflight"
)

// CheckReport summarizes a manifest that passed every check.
type CheckReport struct {
	Configs    int
	Raw        int
	Models     int
	Disabled   int
	Results    []preflight.Result
	Collisions []linkfarm.Collision
}

// Check validates the manifest, resolves the token, and verifies the cache and
// link directories without touching the network or the filesystem.
func (m *Manager) Check(ctx context.Context, man *manifest.Manifest) (*CheckReport, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow"))
	_, results, err := m.prepare(ctx, man, logger)
	if err != nil {
		return nil, err
	}
	report := &CheckReport{
		Configs:    len(man.Configs),
		Raw:        len(man.RawArtifacts),
		Models:     len(man.Models),
		Results:    results,
		Collisions: linkfarm.Collisions(man),
	}
	for _, model := range man.Models {
		if !model.Enabled {
			report.Disabled++
		}
	}
	for _, raw := range man.RawArtifacts {
		if !raw.Enabled {
			report.Disabled++
		}
	}
	return report, nil
}

// prepare runs the checks every command shares before it touches the
// filesystem: validation, token resolution, and directory preflight.
func (m *Manager) prepare(ctx context.Context, man *manifest.Manifest, logger *slog.Logger) (credential.Token, []preflight.Result, error) {
	if man == nil {
		return "", nil, failure.Wrap(failure.ErrConfig, "workflow", "prepare", "no manifest loaded", nil)
	}
	if err := manifest.Validate(man); err != nil {
		logger.Error("manifest validation failed",
			logging.String("manifest", man.Source),
			logging.String(logging.FieldEventType, "manifest_invalid"),
			logging.String(logging.FieldErrorHint, "remove or rename the reported entries"),
			logging.Error(err),
		)
		return "", nil, err
	}
	token, err := m.token(man.CredentialRef)
	if err != nil {
		return "", nil, err
	}
	results, err := m.runPreflightChecks(ctx, man, logger)
	if err != nil {
		return "", results, err
	}
	return token, results, nil
}

// runPreflightChecks verifies the directories a run needs. The error, if any,
// lists every failed check.
func (m *Manager) runPreflightChecks(ctx context.Context, man *manifest.Manifest, logger *slog.Logger) ([]preflight.Result, error) {
	results := preflight.RunAll(ctx, m.cfg, man)
	var failures []string
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "create the directory or fix cache_dir/models_dir in the manifest"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failures) > 0 {
		return results, failure.Wrap(failure.ErrFilesystem, "workflow", "preflight", strings.Join(failures, "; "), nil)
	}
	return results, nil
}
