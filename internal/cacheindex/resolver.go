package cacheindex

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"modelfarm/internal/failure"
	"modelfarm/internal/logging"
)

// Defaults for the lookup loop.
const (
	DefaultAttempts = 10
	DefaultBackoff  = 30 * time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Resolver finds where a repository's main revision lives in the cache.
type Resolver struct {
	Indexer  Indexer
	Attempts int
	Backoff  time.Duration
	Sleep    Sleeper
	Logger   *slog.Logger
}

// NewResolver builds a resolver with the default attempt ceiling and backoff.
func NewResolver(indexer Indexer, logger *slog.Logger) *Resolver {
	return &Resolver{
		Indexer:  indexer,
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
		Sleep:    ContextSleep,
		Logger:   logger,
	}
}

// Resolve returns the cache-relative path of repoID's main snapshot. The
// returned path starts with the cache directory's own name. A repository
// missing from the index, or an index query that fails, is retried after
// Backoff, up to Attempts queries.
func (r *Resolver) Resolve(ctx context.Context, repoID, cacheDir string) (string, error) {
	if r == nil || r.Indexer == nil {
		return "", failure.Wrap(failure.ErrResolution, "cache resolver", "resolve", "no index configured", nil)
	}
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	logger := logging.NewComponentLogger(r.Logger, "cache-resolver")

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		records, err := r.Indexer.Query(ctx, cacheDir)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			lastErr = err
		} else {
			lastErr = nil
			if localPath, ok := Lookup(records, repoID); ok {
				rel, err := FindRelativePath(cacheDir, localPath)
				if err != nil {
					return "", failure.Wrap(failure.ErrResolution, "cache resolver", "relative path", fmt.Sprintf("repo_id %s", repoID), err)
				}
				logger.Debug("repo resolved",
					logging.String(logging.FieldRepoID, repoID),
					logging.String(logging.FieldPath, rel),
					logging.Int("attempt", attempt),
				)
				return rel, nil
			}
		}
		if attempt == attempts {
			break
		}
		if lastErr != nil {
			logging.WarnWithContext(logger, "cache index query failed; waiting", "index_query_failed",
				logging.String(logging.FieldRepoID, repoID),
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", attempts),
				logging.Duration("backoff", r.Backoff),
				logging.Error(lastErr),
			)
		} else {
			logger.Info("repo not indexed yet; waiting",
				logging.String(logging.FieldRepoID, repoID),
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", attempts),
				logging.Duration("backoff", r.Backoff),
			)
		}
		if err := sleep(ctx, r.Backoff); err != nil {
			return "", err
		}
	}

	if lastErr != nil {
		return "", failure.Wrap(failure.ErrResolution, "cache resolver", "query index",
			fmt.Sprintf("repo_id %s: index unreachable after %d attempts", repoID, attempts), lastErr)
	}
	return "", failure.Wrap(failure.ErrResolution, "cache resolver", "resolve",
		fmt.Sprintf("repo_id %s was not reported with ref %s after %d attempts", repoID, MainRevision, attempts), nil)
}

// Lookup returns the local path of the first record for repoID whose refs
// include main.
func Lookup(records []Record, repoID string) (string, bool) {
	for _, rec := range records {
		if rec.RepoID == repoID && rec.HasRef(MainRevision) {
			return rec.LocalPath, true
		}
	}
	return "", false
}

// FindRelativePath trims localPath down to the suffix that begins with the
// final element of cacheDir, e.g. cacheDir /data/hf and localPath
// /mnt/hf/models--a--b/snapshots/c yield hf/models--a--b/snapshots/c.
func FindRelativePath(cacheDir, localPath string) (string, error) {
	root := filepath.Base(filepath.Clean(cacheDir))
	if root == "." || root == string(filepath.Separator) {
		return "", fmt.Errorf("cache dir %q has no name", cacheDir)
	}
	parts := strings.Split(filepath.ToSlash(filepath.Clean(localPath)), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == root {
			return filepath.Join(parts[i:]...), nil
		}
	}
	return "", fmt.Errorf("path %s is not inside a directory named %s", localPath, root)
}
