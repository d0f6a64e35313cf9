// Package workflow runs the modelfarm commands against a loaded manifest.
//
// The Manager validates the manifest, resolves the hub token once, checks the
// cache and link directories, and then walks the manifest strictly in order:
// configs, raw artifacts, then models. Each model is fetched into the shared
// hub cache, located through the cache index, and linked into the link
// directory under a flat name. The first failure stops the run and names the
// entry that caused it.
//
// Every mutating run gets a run id that is attached to log lines and, when the
// ledger is enabled, recorded together with per-artifact outcomes.
package workflow
