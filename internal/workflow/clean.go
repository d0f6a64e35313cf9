package workflow

import (
	"context"

	"modelfarm/internal/failure"
	"modelfarm/internal/linkfarm"
	"modelfarm/internal/logging"
	"modelfarm/internal/manifest"
	"modelfarm/internal/preflight"
)

// Clean removes every link in the manifest's link directory and recreates it
// empty. The cache directory is not touched.
func (m *Manager) Clean(ctx context.Context, man *manifest.Manifest) (summary *Summary, err error) {
	ctx, tracker := m.startRun(ctx, "clean", man)
	summary = newSummary(tracker.run.ID, "clean", true)
	defer func() { tracker.finish(ctx, summary, err) }()

	if man == nil {
		return summary, failure.Wrap(failure.ErrConfig, "workflow", "clean", "no manifest loaded", nil)
	}
	if r := preflight.CheckParentDirectory("Link directory parent", man.LinkDir); !r.Passed {
		return summary, failure.Wrap(failure.ErrFilesystem, "workflow", "clean", r.Detail, nil)
	}

	builder := &linkfarm.Builder{LinkDir: man.LinkDir, CacheDir: man.CacheDir}
	unlock, err := builder.Lock()
	if err != nil {
		return summary, err
	}
	defer func() {
		if unlockErr := unlock(); unlockErr != nil {
			tracker.logger.Warn("release link dir lock failed", logging.Error(unlockErr))
		}
	}()

	states, err := builder.Inspect()
	if err != nil {
		return summary, err
	}
	if err := builder.Reset(); err != nil {
		return summary, err
	}
	for _, state := range states {
		tracker.logger.Debug("link removed", logging.String("link", state.Describe()))
	}
	summary.Removed = len(states)
	tracker.logger.Info("link directory reset",
		logging.String(logging.FieldPath, man.LinkDir),
		logging.Int("removed_links", len(states)),
	)
	return summary, nil
}
