package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"modelfarm/internal/cacheindex"
	"modelfarm/internal/failure"
	"modelfarm/internal/fetch"
	"modelfarm/internal/ledger"
	"modelfarm/internal/linkfarm"
	"modelfarm/internal/testsupport"
	"modelfarm/internal/workflow"
)

func TestDownloadBuildsLinkFarm(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())

	summary, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	want := []string{"chat.json", "gamma-cfg.yaml", "org_alpha.gguf", "org_beta.gguf", "tiny.bin"}
	if got := linkNames(t, e.linkDir); !slices.Equal(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	if got := readLink(t, filepath.Join(e.linkDir, "org_alpha.gguf")); got != "alpha weights" {
		t.Fatalf("alpha link content = %q", got)
	}
	if got := readLink(t, filepath.Join(e.linkDir, "chat.json")); got != `{"template":"chat"}` {
		t.Fatalf("config link content = %q", got)
	}
	if got := readLink(t, filepath.Join(e.linkDir, "tiny.bin")); got != "tiny" {
		t.Fatalf("raw link content = %q", got)
	}
	target, err := os.Readlink(filepath.Join(e.linkDir, "org_beta.gguf"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if filepath.IsAbs(target) {
		t.Fatalf("expected relative link target, got %s", target)
	}

	if summary.Models.Fetched != 2 || summary.Models.Disabled != 1 || summary.Models.Linked != 2 {
		t.Fatalf("unexpected model counts: %+v", summary.Models)
	}
	if summary.Configs.Fetched != 2 || summary.Configs.Linked != 2 {
		t.Fatalf("unexpected config counts: %+v", summary.Configs)
	}
	if summary.Raw.Fetched != 1 || summary.Raw.Linked != 1 {
		t.Fatalf("unexpected raw counts: %+v", summary.Raw)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
	if n := e.hub.Requests("/org/gamma/resolve/main/gamma.gguf"); n != 0 {
		t.Fatalf("disabled model was requested %d times", n)
	}
}

func TestDownloadIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	mgr := e.manager()

	if _, err := mgr.Download(context.Background(), m, workflow.DownloadOptions{Links: true}); err != nil {
		t.Fatalf("first Download: %v", err)
	}
	first := linkTargets(t, e.linkDir)

	summary, err := mgr.Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if got := linkTargets(t, e.linkDir); !maps.Equal(got, first) {
		t.Fatalf("links changed between runs: %v vs %v", got, first)
	}
	if summary.Models.Skipped != 2 || summary.Models.Fetched != 0 {
		t.Fatalf("expected cached models to be skipped: %+v", summary.Models)
	}
	if summary.Raw.Skipped != 1 {
		t.Fatalf("expected raw artifact to be skipped: %+v", summary.Raw)
	}
	if summary.Configs.Skipped != 2 || summary.Configs.Fetched != 0 {
		t.Fatalf("expected cached configs to be skipped: %+v", summary.Configs)
	}
	if n := e.hub.Requests("/files/chat.json"); n != 1 {
		t.Fatalf("config downloaded %d times, want 1", n)
	}
	if n := e.hub.Requests("/org/alpha/resolve/main/alpha.Q4.gguf"); n != 1 {
		t.Fatalf("model downloaded %d times, want 1", n)
	}
	if n := e.hub.Requests("/files/tiny.bin"); n != 1 {
		t.Fatalf("raw artifact downloaded %d times, want 1", n)
	}
}

func TestDownloadKeepsExistingRawArtifact(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	rawPath := filepath.Join(e.cacheDir, linkfarm.RawDir, "tiny.bin")
	testsupport.WriteFile(t, rawPath, 16)

	summary, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Raw.Skipped != 1 || summary.Raw.Fetched != 0 {
		t.Fatalf("unexpected raw counts: %+v", summary.Raw)
	}
	if n := e.hub.Requests("/files/tiny.bin"); n != 0 {
		t.Fatalf("existing raw artifact was downloaded %d times", n)
	}
	info, err := os.Stat(rawPath)
	if err != nil || info.Size() != 16 {
		t.Fatalf("raw artifact was replaced: %v %v", info, err)
	}
}

func TestDownloadKeepsExistingConfig(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	cfgPath := filepath.Join(e.cacheDir, linkfarm.ConfigsDir, "chat.json")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatalf("mkdir configs: %v", err)
	}
	if err := os.WriteFile(cfgPath, []byte("local config"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	summary, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n := e.hub.Requests("/files/chat.json"); n != 0 {
		t.Fatalf("existing config was downloaded %d times", n)
	}
	if got := readLink(t, filepath.Join(e.linkDir, "chat.json")); got != "local config" {
		t.Fatalf("config was overwritten: %q", got)
	}
	if summary.Configs.Skipped != 1 || summary.Configs.Fetched != 1 {
		t.Fatalf("unexpected config counts: %+v", summary.Configs)
	}
}

func TestDownloadRequiresCacheDir(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	if err := os.Remove(e.cacheDir); err != nil {
		t.Fatalf("remove cache dir: %v", err)
	}

	_, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, failure.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Cache directory") {
		t.Fatalf("error should name the cache directory: %v", err)
	}
	if _, statErr := os.Stat(e.cacheDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("cache dir was created: %v", statErr)
	}
	if _, statErr := os.Stat(e.linkDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("link dir touched after preflight failure: %v", statErr)
	}
	if n := e.hub.Requests("/files/chat.json"); n != 0 {
		t.Fatalf("fetch ran after preflight failure: %d requests", n)
	}
}

func TestDownloadDisabledModelKeepsConfigLink(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())

	if _, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true}); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.linkDir, "org_gamma.gguf")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no link for disabled model, got %v", err)
	}
	if got := readLink(t, filepath.Join(e.linkDir, "gamma-cfg.yaml")); got != "template: gamma\n" {
		t.Fatalf("gamma config link content = %q", got)
	}
}

func TestDownloadWithoutLinks(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	resolver := cacheindex.NewResolver(cacheindex.IndexerFunc(func(context.Context, string) ([]cacheindex.Record, error) {
		t.Fatal("resolver must not run without links")
		return nil, nil
	}), nil)

	summary, err := e.manager(workflow.WithResolver(resolver)).Download(context.Background(), m, workflow.DownloadOptions{Links: false})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Stat(e.linkDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("link dir should not be created, stat err = %v", err)
	}
	if summary.Models.Fetched != 2 {
		t.Fatalf("unexpected model counts: %+v", summary.Models)
	}
	cfgPath := filepath.Join(e.cacheDir, linkfarm.ConfigsDir, "chat.json")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config not stored in cache: %v", err)
	}
	rawPath := filepath.Join(e.cacheDir, linkfarm.RawDir, "tiny.bin")
	if _, err := os.Stat(rawPath); err != nil {
		t.Fatalf("raw artifact not stored in cache: %v", err)
	}
}

func TestDownloadStopsOnValidationError(t *testing.T) {
	e := newEnv(t)
	e.seed()
	body := e.standardManifest() + `  - name: tiny-again
    url: ` + e.hub.URL() + `/files/tiny.bin
    filename: tiny.bin
`
	m := e.load(strings.Replace(body, "name: beta\n    repo_id: org/beta\n    filename: beta.gguf",
		"name: beta\n    repo_id: org/alpha\n    filename: alpha.Q4.gguf", 1))

	_, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if failure.ExitCode(err) != failure.ExitValidation {
		t.Fatalf("exit code = %d", failure.ExitCode(err))
	}
	if n := e.hub.Requests("/files/chat.json"); n != 0 {
		t.Fatalf("fetch ran before validation: %d requests", n)
	}
	if _, statErr := os.Stat(e.linkDir); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("link dir touched after validation failure")
	}
}

func TestDownloadRequiresCredential(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(strings.Replace(e.standardManifest(), "env.HF_TOKEN", "env.MISSING_TOKEN", 1))

	_, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, failure.ErrCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if !strings.Contains(err.Error(), "MISSING_TOKEN") {
		t.Fatalf("error should name the variable: %v", err)
	}
}

func TestDownloadRefusesConcurrentRun(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())

	held := flock.New(linkfarm.LockPath(m.LinkDir))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, err = e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, failure.ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestDownloadNamesFailingEntry(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	e.hub.FailNext("/files/tiny.bin", 404)

	_, err := e.manager().Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, failure.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if !strings.Contains(err.Error(), `raw artifact "tiny"`) {
		t.Fatalf("error should name the entry: %v", err)
	}
	if n := e.hub.Requests("/org/alpha/resolve/main/alpha.Q4.gguf"); n != 0 {
		t.Fatalf("models fetched after raw failure: %d requests", n)
	}
}

// noCacheFetcher reports success without writing anything, so the cache
// index never learns about the model.
type noCacheFetcher struct{}

func (noCacheFetcher) FetchModel(context.Context, fetch.ModelRequest) (fetch.Result, error) {
	return fetch.Result{}, nil
}

func (noCacheFetcher) FetchURL(_ context.Context, req fetch.URLRequest) (fetch.Result, error) {
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return fetch.Result{}, err
	}
	return fetch.Result{Path: req.Dest}, os.WriteFile(req.Dest, []byte("x"), 0o644)
}

func TestDownloadResolutionFailureNamesRepo(t *testing.T) {
	e := newEnv(t)
	m := e.load(e.standardManifest())

	_, err := e.manager(workflow.WithFetcher(noCacheFetcher{})).Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, failure.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "org/alpha") {
		t.Fatalf("error should name the repo: %v", err)
	}
	if failure.ExitCode(err) != failure.ExitResolution {
		t.Fatalf("exit code = %d", failure.ExitCode(err))
	}
}

func TestDownloadRecordsLedger(t *testing.T) {
	e := newEnv(t, testsupport.WithLedger(true))
	e.seed()
	m := e.load(e.standardManifest())
	store := testsupport.MustOpenLedger(t, e.cfg)
	ctx := context.Background()

	summary, err := e.manager(workflow.WithLedger(store)).Download(ctx, m, workflow.DownloadOptions{Links: true})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	run, err := store.Get(ctx, summary.RunID)
	if err != nil || run == nil {
		t.Fatalf("Get run: %v (%v)", run, err)
	}
	if run.Outcome != ledger.OutcomeSucceeded || run.Command != "download" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Fetched != 5 || run.Linked != 5 {
		t.Fatalf("unexpected run counts: %+v", run)
	}
	if run.ManifestPath != m.Source {
		t.Fatalf("manifest path = %q", run.ManifestPath)
	}
	artifacts, err := store.Artifacts(ctx, run.ID)
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	var unlinked int
	for _, a := range artifacts {
		if a.Action == ledger.ActionUnlinked {
			unlinked++
			if a.Name != "gamma" {
				t.Fatalf("unexpected unlinked artifact %+v", a)
			}
		}
	}
	if unlinked != 1 {
		t.Fatalf("expected one unlinked artifact, got %d", unlinked)
	}
}

func TestDownloadRecordsFailedRun(t *testing.T) {
	e := newEnv(t, testsupport.WithLedger(true))
	e.seed()
	m := e.load(e.standardManifest())
	store := testsupport.MustOpenLedger(t, e.cfg)
	e.hub.FailNext("/files/chat.json", 403)

	summary, err := e.manager(workflow.WithLedger(store)).Download(context.Background(), m, workflow.DownloadOptions{Links: true})
	if err == nil {
		t.Fatal("expected download to fail")
	}
	run, getErr := store.Get(context.Background(), summary.RunID)
	if getErr != nil || run == nil {
		t.Fatalf("Get run: %v", getErr)
	}
	if run.Outcome != ledger.OutcomeFailed || !strings.Contains(run.ErrorMessage, "chat") {
		t.Fatalf("unexpected failed run: %+v", run)
	}
}

func TestDownloadHonorsCancellation(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.manager().Download(ctx, m, workflow.DownloadOptions{Links: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCleanResetsLinkDir(t *testing.T) {
	e := newEnv(t)
	e.seed()
	m := e.load(e.standardManifest())
	mgr := e.manager()
	if _, err := mgr.Download(context.Background(), m, workflow.DownloadOptions{Links: true}); err != nil {
		t.Fatalf("Download: %v", err)
	}

	summary, err := mgr.Clean(context.Background(), m)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if summary.Removed != 5 {
		t.Fatalf("removed = %d, want 5", summary.Removed)
	}
	if got := linkNames(t, e.linkDir); len(got) != 0 {
		t.Fatalf("links survived clean: %v", got)
	}
	if _, err := os.Stat(filepath.Join(e.cacheDir, linkfarm.RawDir, "tiny.bin")); err != nil {
		t.Fatalf("clean touched the cache: %v", err)
	}

	var out bytes.Buffer
	summary.Render(&out)
	if !strings.Contains(out.String(), "removed 5 links") {
		t.Fatalf("unexpected clean summary: %q", out.String())
	}
}

func TestCheckReportsManifest(t *testing.T) {
	e := newEnv(t)
	m := e.load(e.standardManifest())

	report, err := e.manager().Check(context.Background(), m)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if report.Models != 3 || report.Configs != 2 || report.Raw != 1 || report.Disabled != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Results) == 0 {
		t.Fatal("expected preflight results")
	}
	if _, err := os.Stat(filepath.Join(e.cacheDir, linkfarm.ConfigsDir)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("check must not create cache subdirectories")
	}
	if _, err := os.Stat(e.linkDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("check must not create the link dir")
	}
}

func TestCheckFailsWhenLinkParentMissing(t *testing.T) {
	e := newEnv(t)
	m := e.load(strings.Replace(e.standardManifest(), "models_dir: models", "models_dir: missing/parent/models", 1))

	_, err := e.manager().Check(context.Background(), m)
	if !errors.Is(err, failure.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
}

func TestSummaryRender(t *testing.T) {
	s := &workflow.Summary{
		RunID:  "abc",
		Links:  true,
		Models: workflow.Counts{Fetched: 1, Linked: 1, Bytes: 2048},
		Raw:    workflow.Counts{Skipped: 2},
	}
	var out bytes.Buffer
	s.Render(&out)
	text := out.String()
	for _, want := range []string{"fetched 1 file,", "fetched 0 files", "1 link", "skipped 2", "2.0 kB", "run abc"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
}
