package preflight

import (
	"context"

	"modelfarm/internal/config"
	"modelfarm/internal/manifest"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes the filesystem checks a download needs. The cache directory
// must already exist; the link directory's parent must exist because Reset
// recreates only the final element.
func RunAll(_ context.Context, cfg *config.Config, m *manifest.Manifest) []Result {
	var results []Result
	if cfg != nil && cfg.Paths.StateDir != "" && cfg.Ledger.Enabled {
		results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))
	}
	if m == nil {
		return results
	}
	results = append(results,
		CheckDirectoryAccess("Cache directory", m.CacheDir),
		CheckParentDirectory("Link directory parent", m.LinkDir),
	)
	return results
}
