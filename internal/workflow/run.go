package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"modelfarm/internal/ledger"
	"modelfarm/internal/logging"
	"modelfarm/internal/manifest"
)

// runTracker carries the identity of one run and mirrors its progress into
// the ledger. Ledger failures are logged and never fail the run.
type runTracker struct {
	m      *Manager
	logger *slog.Logger
	run    ledger.Run
}

func (m *Manager) startRun(ctx context.Context, command string, man *manifest.Manifest) (context.Context, *runTracker) {
	id := uuid.NewString()
	ctx = logging.WithRunID(ctx, id)
	ctx = logging.WithCommand(ctx, command)
	t := &runTracker{
		m:      m,
		logger: logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow")),
		run: ledger.Run{
			ID:        id,
			Command:   command,
			StartedAt: m.now().UTC(),
			Outcome:   ledger.OutcomeRunning,
		},
	}
	if man != nil {
		t.run.ManifestPath = man.Source
	}
	if m.ledger != nil {
		if err := m.ledger.BeginRun(ctx, t.run); err != nil {
			t.warn("run not recorded", err)
		}
	}
	t.logger.Info("run started", logging.String("manifest", t.run.ManifestPath))
	return ctx, t
}

func (t *runTracker) record(ctx context.Context, kind manifest.Kind, name string, action ledger.Action, path string, bytes int64) {
	if t.m.ledger == nil {
		return
	}
	err := t.m.ledger.RecordArtifact(ctx, ledger.Artifact{
		RunID:      t.run.ID,
		Kind:       string(kind),
		Name:       name,
		Action:     action,
		Path:       path,
		Bytes:      bytes,
		RecordedAt: t.m.now().UTC(),
	})
	if err != nil {
		t.warn("artifact not recorded", err)
	}
}

// finish stamps the run outcome. It runs even when ctx was canceled so an
// interrupted run is not left marked as running.
func (t *runTracker) finish(ctx context.Context, summary *Summary, runErr error) {
	t.run.FinishedAt = t.m.now().UTC()
	t.run.Outcome = ledger.OutcomeSucceeded
	if runErr != nil {
		t.run.Outcome = ledger.OutcomeFailed
		t.run.ErrorMessage = runErr.Error()
	}
	if summary != nil {
		totals := summary.Totals()
		t.run.Fetched = totals.Fetched
		t.run.Skipped = totals.Skipped
		t.run.Linked = totals.Linked
		t.run.Bytes = totals.Bytes
		summary.Duration = t.run.Duration()
	}

	if runErr != nil {
		t.logger.Error("run failed",
			logging.Duration("duration", t.run.Duration()),
			logging.String(logging.FieldEventType, "run_failed"),
			logging.Error(runErr),
		)
	} else {
		t.logger.Info("run finished",
			logging.Duration("duration", t.run.Duration()),
			logging.Int("fetched", t.run.Fetched),
			logging.Int("skipped", t.run.Skipped),
			logging.Int("linked", t.run.Linked),
			logging.Int64("bytes", t.run.Bytes),
			logging.String(logging.FieldEventType, "run_finished"),
		)
	}

	if t.m.ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := t.m.ledger.FinishRun(ctx, t.run); err != nil {
		t.warn("run outcome not recorded", err)
		return
	}
	if keep := t.m.cfg.Ledger.Retain; keep > 0 {
		pruned, err := t.m.ledger.Prune(ctx, keep)
		if err != nil {
			t.warn("ledger prune failed", err)
		} else if pruned > 0 {
			t.logger.Debug("pruned old runs", logging.Int64("pruned", pruned))
		}
	}
}

func (t *runTracker) warn(msg string, err error) {
	logging.WarnWithContext(t.logger, msg, "ledger_write_failed",
		logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
		logging.String(logging.FieldImpact, "run history is incomplete"),
		logging.Error(err),
	)
}
