package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"modelfarm/internal/config"
	"modelfarm/internal/manifest"
	"modelfarm/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDirectory(t *testing.T) {
	root := t.TempDir()
	if r := CheckCreatableDirectory("cache", filepath.Join(root, "hf")); !r.Passed {
		t.Fatalf("missing dir with usable parent should pass: %s", r.Detail)
	}
	if r := CheckCreatableDirectory("cache", filepath.Join(root, "a", "b")); r.Passed {
		t.Fatal("missing dir with missing parent should fail")
	}
}

func TestRunAll(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(root, "state")
	m := &manifest.Manifest{
		CacheDir: filepath.Join(root, "hf"),
		LinkDir:  filepath.Join(root, "missing", "models"),
	}
	if err := os.Mkdir(m.CacheDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg, m)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Link directory parent" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllRequiresExistingCacheDir(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(root, "state")
	m := &manifest.Manifest{
		CacheDir: filepath.Join(root, "hf"),
		LinkDir:  filepath.Join(root, "models"),
	}

	failed := Failed(RunAll(context.Background(), &cfg, m))
	if len(failed) != 1 || failed[0].Name != "Cache directory" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	if _, err := os.Stat(m.CacheDir); !os.IsNotExist(err) {
		t.Fatalf("cache dir should not be created, stat err = %v", err)
	}
}

func TestCheckHub_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckHub(context.Background(), srv.URL, "good-token", "modelfarm/test")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckHub_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckHub(context.Background(), srv.URL, "bad", "")
	if result.Passed {
		t.Fatal("expected failure for rejected token")
	}
}

func TestCheckHubFromConfigUnresolvedToken(t *testing.T) {
	cfg := config.Default()
	result := CheckHubFromConfig(context.Background(), &cfg, "env.MODELFARM_SURELY_UNSET_TOKEN")
	if result.Passed {
		t.Fatal("expected failure for unset token variable")
	}
}

func TestCheckSystemDepsFindsCacheTool(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Resolver.Index = config.IndexScanCache

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 {
		t.Fatalf("expected one dependency, got %d", len(statuses))
	}
	if !statuses[0].Available || statuses[0].Optional {
		t.Fatalf("expected required cache tool to be available: %+v", statuses[0])
	}
}

func TestCheckSystemDepsOptionalForSnapshots(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PATH", t.TempDir())
	cfg := testsupport.NewConfig(t)

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 1 || statuses[0].Available || !statuses[0].Optional {
		t.Fatalf("expected optional missing cache tool: %+v", statuses)
	}
}
