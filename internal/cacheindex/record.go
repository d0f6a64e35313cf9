package cacheindex

import (
	"context"
	"slices"
)

// MainRevision is the ref every lookup targets.
const MainRevision = "main"

// Record is one cached revision of a repository.
type Record struct {
	RepoID    string
	RepoType  string
	Revision  string
	Refs      []string
	LocalPath string
}

// HasRef reports whether the revision is pointed to by ref.
func (r Record) HasRef(ref string) bool {
	return slices.Contains(r.Refs, ref)
}

// Indexer lists the revisions currently present in a cache directory.
type Indexer interface {
	Query(ctx context.Context, cacheDir string) ([]Record, error)
}

// LinesIndexer parses a fixed scan report on every query. It stands in for the
// cache tool in tests and fixtures.
type LinesIndexer struct {
	Lines []string
}

func (l LinesIndexer) Query(ctx context.Context, _ string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseScanReport(l.Lines), nil
}

// IndexerFunc adapts a function to the Indexer interface.
type IndexerFunc func(ctx context.Context, cacheDir string) ([]Record, error)

func (f IndexerFunc) Query(ctx context.Context, cacheDir string) ([]Record, error) {
	return f(ctx, cacheDir)
}
