package linkfarm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"modelfarm/internal/failure"
	"modelfarm/internal/manifest"
)

// Cache subdirectories for files the hub cache does not manage.
const (
	ConfigsDir = "configs"
	RawDir     = "raw_models"
)

// Builder creates and removes links in LinkDir pointing into CacheDir.
type Builder struct {
	LinkDir  string
	CacheDir string
}

// Link describes one symlink the builder touched.
type Link struct {
	Name   string
	Target string
	// Created is false when the entry is disabled and only the stale link
	// was removed.
	Created bool
}

// ModelResult reports the links handled for one model.
type ModelResult struct {
	Model  Link
	Config *Link
}

// ConfigPath returns where a config file is stored inside the cache.
func ConfigPath(cacheDir string, c manifest.ConfigEntry) string {
	return filepath.Join(cacheDir, ConfigsDir, ConfigLinkName(c))
}

// RawPath returns where a raw artifact is stored inside the cache.
func RawPath(cacheDir string, r manifest.RawArtifactEntry) string {
	return filepath.Join(cacheDir, RawDir, r.Filename)
}

// ModelLinkName is the link name for a model: its repo id slug with the
// extension of the model file.
func ModelLinkName(m manifest.ModelEntry) string {
	return Slugify(m.RepoID, m.Extension())
}

// ConfigLinkName is the link and cache name for a config file.
func ConfigLinkName(c manifest.ConfigEntry) string {
	return Slugify(c.Name, c.Extension())
}

// LinkModel links a model file found under snapshotPath, a cache-relative
// path as returned by the cache resolver. The model link is created only when
// the model is enabled. When the model names a config, the config link is
// (re)created regardless of the enabled flag.
func (b *Builder) LinkModel(m manifest.ModelEntry, configs []manifest.ConfigEntry, snapshotPath string) (ModelResult, error) {
	var result ModelResult
	dest := filepath.Join(b.LinkDir, ModelLinkName(m))
	source := filepath.Join(filepath.Dir(filepath.Clean(b.CacheDir)), snapshotPath, filepath.FromSlash(m.Filename))
	link, err := b.place(source, dest, m.Enabled)
	if err != nil {
		return result, failure.Wrap(failure.ErrFilesystem, "link builder", "link model", m.Label(), err)
	}
	result.Model = link

	if m.ConfigRef == "" {
		return result, nil
	}
	cfg, ok := findConfig(configs, m.ConfigRef)
	if !ok {
		// Validate guarantees every reference resolves.
		return result, fmt.Errorf("link builder: %s references unknown config %q", m.Label(), m.ConfigRef)
	}
	cfgLink, err := b.place(ConfigPath(b.CacheDir, cfg), filepath.Join(b.LinkDir, ConfigLinkName(cfg)), true)
	if err != nil {
		return result, failure.Wrap(failure.ErrFilesystem, "link builder", "link config", cfg.Label(), err)
	}
	result.Config = &cfgLink
	return result, nil
}

// LinkRaw links a raw artifact under its declared filename.
func (b *Builder) LinkRaw(r manifest.RawArtifactEntry) (Link, error) {
	link, err := b.place(RawPath(b.CacheDir, r), filepath.Join(b.LinkDir, r.Filename), r.Enabled)
	if err != nil {
		return link, failure.Wrap(failure.ErrFilesystem, "link builder", "link raw artifact", r.Label(), err)
	}
	return link, nil
}

// Reset removes the link directory and everything in it, then recreates it
// empty. The parent directory must already exist.
func (b *Builder) Reset() error {
	parent := filepath.Dir(filepath.Clean(b.LinkDir))
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return failure.Wrap(failure.ErrFilesystem, "link builder", "reset", fmt.Sprintf("parent of models_dir %s does not exist", b.LinkDir), err)
	}
	if err := os.RemoveAll(b.LinkDir); err != nil {
		return failure.Wrap(failure.ErrFilesystem, "link builder", "remove link dir", b.LinkDir, err)
	}
	if err := os.Mkdir(b.LinkDir, 0o755); err != nil {
		return failure.Wrap(failure.ErrFilesystem, "link builder", "create link dir", b.LinkDir, err)
	}
	return nil
}

func (b *Builder) place(source, dest string, create bool) (Link, error) {
	link := Link{Name: filepath.Base(dest)}
	if err := removeLink(dest); err != nil {
		return link, err
	}
	if !create {
		return link, nil
	}
	target, err := relativeTarget(b.LinkDir, source)
	if err != nil {
		return link, err
	}
	if err := os.Symlink(target, dest); err != nil {
		return link, fmt.Errorf("symlink %s -> %s: %w", dest, target, err)
	}
	link.Target = target
	link.Created = true
	return link, nil
}

// removeLink removes a symlink at path. Anything other than a symlink is left
// alone and reported.
func removeLink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%s exists and is not a symlink", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale link %s: %w", path, err)
	}
	return nil
}

func relativeTarget(linkDir, source string) (string, error) {
	absLinkDir, err := filepath.Abs(linkDir)
	if err != nil {
		return "", fmt.Errorf("resolve link dir: %w", err)
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("resolve link source: %w", err)
	}
	target, err := filepath.Rel(absLinkDir, absSource)
	if err != nil {
		return "", fmt.Errorf("relative target for %s: %w", source, err)
	}
	return target, nil
}

func findConfig(configs []manifest.ConfigEntry, name string) (manifest.ConfigEntry, bool) {
	for _, c := range configs {
		if c.Name == name {
			return c, true
		}
	}
	return manifest.ConfigEntry{}, false
}
