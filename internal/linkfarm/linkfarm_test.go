package linkfarm_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modelfarm/internal/failure"
	"modelfarm/internal/linkfarm"
	"modelfarm/internal/manifest"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		value string
		ext   []string
		want  string
	}{
		{"org/model", []string{"bin"}, "org_model.bin"},
		{`a\b`, nil, "a_b"},
		{"org/model", []string{".gguf"}, "org_model.gguf"},
		{"plain", []string{""}, "plain"},
	}
	for _, tc := range cases {
		if got := linkfarm.Slugify(tc.value, tc.ext...); got != tc.want {
			t.Fatalf("Slugify(%q, %v) = %q, want %q", tc.value, tc.ext, got, tc.want)
		}
	}
}

type farm struct {
	root     string
	cacheDir string
	linkDir  string
	builder  *linkfarm.Builder
	configs  []manifest.ConfigEntry
}

func newFarm(t *testing.T) *farm {
	t.Helper()
	root := t.TempDir()
	f := &farm{
		root:     root,
		cacheDir: filepath.Join(root, "hf"),
		linkDir:  filepath.Join(root, "models"),
		configs: []manifest.ConfigEntry{
			{Name: "qwen-cfg", URL: "https://example.com/qwen.json"},
		},
	}
	f.builder = &linkfarm.Builder{LinkDir: f.linkDir, CacheDir: f.cacheDir}
	for _, dir := range []string{
		f.linkDir,
		filepath.Join(f.cacheDir, "models--Qwen--Q", "snapshots", "abc"),
		filepath.Join(f.cacheDir, linkfarm.ConfigsDir),
		filepath.Join(f.cacheDir, linkfarm.RawDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	writeFile(t, filepath.Join(f.cacheDir, "models--Qwen--Q", "snapshots", "abc", "q4.gguf"))
	writeFile(t, linkfarm.ConfigPath(f.cacheDir, f.configs[0]))
	return f
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func snapshotLinks(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read link dir: %v", err)
	}
	links := make(map[string]string, len(entries))
	for _, entry := range entries {
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("readlink %s: %v", entry.Name(), err)
		}
		links[entry.Name()] = target
	}
	return links
}

func TestLinkModelCreatesModelAndConfigLinks(t *testing.T) {
	f := newFarm(t)
	model := manifest.ModelEntry{Name: "qwen", RepoID: "Qwen/Q", Filename: "q4.gguf", ConfigRef: "qwen-cfg", Enabled: true}

	result, err := f.builder.LinkModel(model, f.configs, filepath.Join("hf", "models--Qwen--Q", "snapshots", "abc"))
	if err != nil {
		t.Fatalf("LinkModel returned error: %v", err)
	}
	if !result.Model.Created || result.Config == nil || !result.Config.Created {
		t.Fatalf("unexpected result: %+v", result)
	}

	links := snapshotLinks(t, f.linkDir)
	wantModel := filepath.Join("..", "hf", "models--Qwen--Q", "snapshots", "abc", "q4.gguf")
	if links["Qwen_Q.gguf"] != wantModel {
		t.Fatalf("model link target = %q, want %q", links["Qwen_Q.gguf"], wantModel)
	}
	wantConfig := filepath.Join("..", "hf", "configs", "qwen-cfg.json")
	if links["qwen-cfg.json"] != wantConfig {
		t.Fatalf("config link target = %q, want %q", links["qwen-cfg.json"], wantConfig)
	}
	if _, err := os.Stat(filepath.Join(f.linkDir, "Qwen_Q.gguf")); err != nil {
		t.Fatalf("model link does not resolve: %v", err)
	}
}

func TestLinkModelIsIdempotent(t *testing.T) {
	f := newFarm(t)
	model := manifest.ModelEntry{Name: "qwen", RepoID: "Qwen/Q", Filename: "q4.gguf", ConfigRef: "qwen-cfg", Enabled: true}
	rel := filepath.Join("hf", "models--Qwen--Q", "snapshots", "abc")

	if _, err := f.builder.LinkModel(model, f.configs, rel); err != nil {
		t.Fatalf("first LinkModel: %v", err)
	}
	first := snapshotLinks(t, f.linkDir)
	if _, err := f.builder.LinkModel(model, f.configs, rel); err != nil {
		t.Fatalf("second LinkModel: %v", err)
	}
	second := snapshotLinks(t, f.linkDir)
	if len(first) != len(second) {
		t.Fatalf("link count changed: %v vs %v", first, second)
	}
	for name, target := range first {
		if second[name] != target {
			t.Fatalf("link %s changed from %q to %q", name, target, second[name])
		}
	}
}

func TestLinkModelDisabledKeepsConfigLink(t *testing.T) {
	f := newFarm(t)
	model := manifest.ModelEntry{Name: "qwen", RepoID: "Qwen/Q", Filename: "q4.gguf", ConfigRef: "qwen-cfg", Enabled: true}
	rel := filepath.Join("hf", "models--Qwen--Q", "snapshots", "abc")
	if _, err := f.builder.LinkModel(model, f.configs, rel); err != nil {
		t.Fatalf("LinkModel: %v", err)
	}

	model.Enabled = false
	result, err := f.builder.LinkModel(model, f.configs, rel)
	if err != nil {
		t.Fatalf("LinkModel disabled: %v", err)
	}
	if result.Model.Created {
		t.Fatal("disabled model must not be linked")
	}
	links := snapshotLinks(t, f.linkDir)
	if _, ok := links["Qwen_Q.gguf"]; ok {
		t.Fatal("stale model link was not removed")
	}
	if _, ok := links["qwen-cfg.json"]; !ok {
		t.Fatal("config link should exist for a disabled model")
	}
}

func TestLinkModelRefusesToReplaceRegularFile(t *testing.T) {
	f := newFarm(t)
	writeFile(t, filepath.Join(f.linkDir, "Qwen_Q.gguf"))
	model := manifest.ModelEntry{Name: "qwen", RepoID: "Qwen/Q", Filename: "q4.gguf", Enabled: true}

	_, err := f.builder.LinkModel(model, nil, filepath.Join("hf", "models--Qwen--Q", "snapshots", "abc"))
	if !errors.Is(err, failure.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
}

func TestLinkRaw(t *testing.T) {
	f := newFarm(t)
	raw := manifest.RawArtifactEntry{Name: "tiny", URL: "https://example.com/tiny.bin", Filename: "tiny.bin", Enabled: true}
	writeFile(t, linkfarm.RawPath(f.cacheDir, raw))

	link, err := f.builder.LinkRaw(raw)
	if err != nil {
		t.Fatalf("LinkRaw returned error: %v", err)
	}
	if link.Target != filepath.Join("..", "hf", "raw_models", "tiny.bin") {
		t.Fatalf("unexpected target %q", link.Target)
	}

	raw.Enabled = false
	if _, err := f.builder.LinkRaw(raw); err != nil {
		t.Fatalf("LinkRaw disabled: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(f.linkDir, "tiny.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("disabled raw link should be removed, got %v", err)
	}
}

func TestResetAndInspect(t *testing.T) {
	f := newFarm(t)
	if err := os.Symlink("../hf/missing", filepath.Join(f.linkDir, "stale.bin")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink("../hf/configs/qwen-cfg.json", filepath.Join(f.linkDir, "cfg.json")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	states, err := f.builder.Inspect()
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if len(states) != 2 || states[0].Name != "cfg.json" || states[0].Dangling || !states[1].Dangling {
		t.Fatalf("unexpected states: %+v", states)
	}

	if err := f.builder.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	entries, err := os.ReadDir(f.linkDir)
	if err != nil {
		t.Fatalf("read link dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty link dir, got %d entries", len(entries))
	}
}

func TestResetRequiresParent(t *testing.T) {
	b := &linkfarm.Builder{LinkDir: filepath.Join(t.TempDir(), "missing", "models")}
	if err := b.Reset(); !errors.Is(err, failure.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
}

func TestLockIsExclusive(t *testing.T) {
	f := newFarm(t)
	unlock, err := f.builder.Lock()
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}
	if _, err := f.builder.Lock(); !errors.Is(err, failure.ErrUsage) {
		t.Fatalf("expected ErrUsage for second lock, got %v", err)
	}
	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	again, err := f.builder.Lock()
	if err != nil {
		t.Fatalf("Lock after release returned error: %v", err)
	}
	_ = again()
	if got := linkfarm.LockPath(f.linkDir); got != filepath.Join(f.root, ".models.lock") {
		t.Fatalf("unexpected lock path %q", got)
	}
}

func TestCollisions(t *testing.T) {
	m := &manifest.Manifest{
		Configs: []manifest.ConfigEntry{{Name: "cfg", URL: "https://example.com/cfg.json"}},
		Models: []manifest.ModelEntry{
			{Name: "a", RepoID: "org/m", Filename: "q4.gguf", ConfigRef: "cfg", Enabled: true},
			{Name: "b", RepoID: "org/m", Filename: "q8.gguf", Enabled: true},
			{Name: "c", RepoID: "org/m", Filename: "weights.bin", Enabled: true},
			{Name: "d", RepoID: "org/m", Filename: "q2.gguf", Enabled: false},
		},
	}
	collisions := linkfarm.Collisions(m)
	if len(collisions) != 1 {
		t.Fatalf("expected 1 collision, got %+v", collisions)
	}
	if collisions[0].Name != "org_m.gguf" || len(collisions[0].Entries) != 2 {
		t.Fatalf("unexpected collision: %+v", collisions[0])
	}
	if !strings.Contains(collisions[0].Entries[0], `"a"`) || !strings.Contains(collisions[0].Entries[1], `"b"`) {
		t.Fatalf("entries should keep declaration order: %v", collisions[0].Entries)
	}
}
