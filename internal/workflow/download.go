package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"modelfarm/internal/credential"
	"modelfarm/internal/failure"
	"modelfarm/internal/fetch"
	"modelfarm/internal/ledger"
	"modelfarm/internal/linkfarm"
	"modelfarm/internal/logging"
	"modelfarm/internal/manifest"
)

// DownloadOptions controls a download run.
type DownloadOptions struct {
	// Links rebuilds the link directory from scratch after fetching.
	Links bool
}

// download holds the state of one download run.
type download struct {
	m       *Manager
	man     *manifest.Manifest
	opts    DownloadOptions
	token   credential.Token
	builder *linkfarm.Builder
	tracker *runTracker
	summary *Summary
	logger  *slog.Logger
	// configLinks holds configs already counted as linked in this run.
	configLinks map[string]struct{}
}

// Download fetches every entry of the manifest and, when opts.Links is set,
// rebuilds the link directory. The run stops at the first failure.
//
// Disabled models and raw artifacts are neither fetched nor resolved, so a
// disabled entry costs no bandwidth; only its link is affected by the flag.
// A disabled model's config is still fetched and linked. The cache directory
// must already exist; only its configs/ and raw_models/ subdirectories are
// created.
func (m *Manager) Download(ctx context.Context, man *manifest.Manifest, opts DownloadOptions) (summary *Summary, err error) {
	ctx, tracker := m.startRun(ctx, "download", man)
	summary = newSummary(tracker.run.ID, "download", opts.Links)
	defer func() { tracker.finish(ctx, summary, err) }()

	token, _, err := m.prepare(ctx, man, tracker.logger)
	if err != nil {
		return summary, err
	}
	for _, dir := range []string{filepath.Join(man.CacheDir, linkfarm.ConfigsDir), filepath.Join(man.CacheDir, linkfarm.RawDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return summary, failure.Wrap(failure.ErrFilesystem, "workflow", "create cache dir", dir, err)
		}
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

	d := &download{
		m:       m,
		man:     man,
		opts:    opts,
		token:   token,
		builder: builder,
		tracker: tracker,
		summary: summary,
		logger:  tracker.logger,

		configLinks: make(map[string]struct{}),
	}
	if opts.Links {
		if err := builder.Reset(); err != nil {
			return summary, err
		}
		d.warnCollisions()
	}

	for _, entry := range man.Entries() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		switch e := entry.(type) {
		case manifest.ConfigEntry:
			err = d.config(ctx, e)
		case manifest.RawArtifactEntry:
			err = d.raw(ctx, e)
		case manifest.ModelEntry:
			err = d.model(ctx, e)
		default:
			err = fmt.Errorf("workflow: unexpected manifest entry %T", entry)
		}
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (d *download) warnCollisions() {
	for _, c := range linkfarm.Collisions(d.man) {
		logging.WarnWithContext(d.logger, "link name collision", "link_collision",
			logging.String("link", c.Name),
			logging.Any("entries", c.Entries),
			logging.String(logging.FieldErrorHint, "give the colliding entries distinct repos or extensions"),
			logging.String(logging.FieldImpact, "only the last entry remains linked"),
		)
	}
}

// config fetches the config file unless it is already in the cache. Links for
// configs are made by the models that reference them.
func (d *download) config(ctx context.Context, c manifest.ConfigEntry) error {
	res, err := d.m.fetcher.FetchURL(ctx, fetch.URLRequest{
		URL:   c.URL,
		Dest:  linkfarm.ConfigPath(d.man.CacheDir, c),
		Token: d.token,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", c.Label(), err)
	}
	d.fetched(ctx, c.Kind(), c.Name, res)
	return nil
}

func (d *download) raw(ctx context.Context, r manifest.RawArtifactEntry) error {
	counts := d.summary.counts(r.Kind())
	if !r.Enabled {
		counts.Disabled++
		d.logger.Info("raw artifact disabled; skipping",
			logging.String(logging.FieldEntry, r.Name),
			logging.String(logging.FieldKind, string(r.Kind())),
		)
	} else {
		res, err := d.m.fetcher.FetchURL(ctx, fetch.URLRequest{
			URL:   r.URL,
			Dest:  linkfarm.RawPath(d.man.CacheDir, r),
			Token: d.token,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", r.Label(), err)
		}
		d.fetched(ctx, r.Kind(), r.Name, res)
	}
	if !d.opts.Links {
		return nil
	}
	link, err := d.builder.LinkRaw(r)
	if err != nil {
		return err
	}
	d.linked(ctx, r.Kind(), r.Name, link)
	return nil
}

// model fetches, resolves, and links one model. A disabled model is neither
// fetched nor resolved, but its config link is still placed.
func (d *download) model(ctx context.Context, model manifest.ModelEntry) error {
	counts := d.summary.counts(model.Kind())
	logger := d.logger.With(
		logging.String(logging.FieldEntry, model.Name),
		logging.String(logging.FieldRepoID, model.RepoID),
	)

	if !model.Enabled {
		counts.Disabled++
		logger.Info("model disabled; skipping fetch")
	} else {
		res, err := d.m.fetcher.FetchModel(ctx, fetch.ModelRequest{
			RepoID:   model.RepoID,
			Filename: model.Filename,
			Token:    d.token,
			CacheDir: d.man.CacheDir,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", model.Label(), err)
		}
		d.fetched(ctx, model.Kind(), model.Name, res)
	}
	if !d.opts.Links {
		return nil
	}

	var snapshot string
	if model.Enabled {
		var err error
		snapshot, err = d.m.resolver.Resolve(ctx, model.RepoID, d.man.CacheDir)
		if err != nil {
			return fmt.Errorf("%s: %w", model.Label(), err)
		}
	}
	result, err := d.builder.LinkModel(model, d.man.Configs, snapshot)
	if err != nil {
		return err
	}
	d.linked(ctx, model.Kind(), model.Name, result.Model)
	if result.Config != nil {
		if _, seen := d.configLinks[model.ConfigRef]; !seen {
			d.configLinks[model.ConfigRef] = struct{}{}
			d.linked(ctx, manifest.KindConfig, model.ConfigRef, *result.Config)
		}
	}
	return nil
}

func (d *download) fetched(ctx context.Context, kind manifest.Kind, name string, res fetch.Result) {
	counts := d.summary.counts(kind)
	action := ledger.ActionFetched
	if res.Skipped {
		counts.Skipped++
		action = ledger.ActionSkipped
	} else {
		counts.Fetched++
		counts.Bytes += res.Bytes
	}
	d.tracker.record(ctx, kind, name, action, res.Path, res.Bytes)
}

func (d *download) linked(ctx context.Context, kind manifest.Kind, name string, link linkfarm.Link) {
	if !link.Created {
		d.tracker.record(ctx, kind, name, ledger.ActionUnlinked, filepath.Join(d.man.LinkDir, link.Name), 0)
		return
	}
	d.summary.counts(kind).Linked++
	d.logger.Debug("link placed",
		logging.String(logging.FieldKind, string(kind)),
		logging.String(logging.FieldEntry, name),
		logging.String("link", link.Name),
		logging.String("target", link.Target),
	)
	d.tracker.record(ctx, kind, name, ledger.ActionLinked, filepath.Join(d.man.LinkDir, link.Name), 0)
}
