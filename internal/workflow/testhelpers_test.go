package workflow_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"modelfarm/internal/config"
	"modelfarm/internal/manifest"
	"modelfarm/internal/testsupport"
	"modelfarm/internal/workflow"
)

type env struct {
	t        *testing.T
	cfg      *config.Config
	hub      *testsupport.FakeHub
	base     string
	cacheDir string
	linkDir  string
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	hub := testsupport.NewFakeHub(t)
	opts = append([]testsupport.ConfigOption{testsupport.WithEndpoint(hub.URL())}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	cacheDir := filepath.Join(base, "hf-cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatalf("mkdir cache dir: %v", err)
	}
	return &env{
		t:        t,
		cfg:      cfg,
		hub:      hub,
		base:     base,
		cacheDir: cacheDir,
		linkDir:  filepath.Join(base, "models"),
	}
}

// seed serves the artifacts used by standardManifest.
func (e *env) seed() {
	e.hub.AddModel("org/alpha", "alpha.Q4.gguf", []byte("alpha weights"))
	e.hub.AddModel("org/beta", "beta.gguf", []byte("beta weights"))
	e.hub.AddModel("org/gamma", "gamma.gguf", []byte("gamma weights"))
	e.hub.AddFile("/files/chat.json", []byte(`{"template":"chat"}`))
	e.hub.AddFile("/files/gamma.yaml", []byte("template: gamma\n"))
	e.hub.AddFile("/files/tiny.bin", []byte("tiny"))
}

// standardManifest declares two enabled models sharing one config, a disabled
// model with its own config, and one raw artifact.
func (e *env) standardManifest() string {
	return fmt.Sprintf(`
hf_token_ro: env.HF_TOKEN
cache_dir: hf-cache
models_dir: models
configs:
  - name: chat
    url: %[1]s/files/chat.json
  - name: gamma-cfg
    url: %[1]s/files/gamma.yaml
models:
  - name: alpha
    repo_id: org/alpha
    filename: alpha.Q4.gguf
    config: chat
  - name: beta
    repo_id: org/beta
    filename: beta.gguf
    config: chat
  - name: gamma
    repo_id: org/gamma
    filename: gamma.gguf
    config: gamma-cfg
    enabled: false
raw_models:
  - name: tiny
    url: %[1]s/files/tiny.bin
    filename: tiny.bin
`, e.hub.URL())
}

func (e *env) load(body string) *manifest.Manifest {
	e.t.Helper()
	path := testsupport.WriteManifest(e.t, filepath.Join(e.base, "models.yaml"), body)
	m, err := manifest.Load(path)
	if err != nil {
		e.t.Fatalf("manifest.Load: %v", err)
	}
	return m
}

func (e *env) manager(opts ...workflow.ManagerOption) *workflow.Manager {
	opts = append([]workflow.ManagerOption{workflow.WithLookup(tokenLookup)}, opts...)
	return workflow.NewManager(e.cfg, nil, opts...)
}

func tokenLookup(key string) (string, bool) {
	if key == "HF_TOKEN" {
		return "hf_test_token", true
	}
	return "", false
}

func linkNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read link dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink != 0 {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// linkTargets maps every symlink in dir to its raw target.
func linkTargets(t *testing.T, dir string) map[string]string {
	t.Helper()
	targets := make(map[string]string)
	for _, name := range linkNames(t, dir) {
		target, err := os.Readlink(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("readlink %s: %v", name, err)
		}
		targets[name] = target
	}
	return targets
}

func readLink(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read through link %s: %v", path, err)
	}
	return string(data)
}
