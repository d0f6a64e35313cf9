package fetch

import (
	"context"

	"modelfarm/internal/credential"
)

// ModelRequest identifies one file in a hub repository.
type ModelRequest struct {
	RepoID   string
	Filename string
	Token    credential.Token
	CacheDir string
}

// URLRequest describes a plain download. An existing Dest is never
// overwritten.
type URLRequest struct {
	URL  string
	Dest string
	// Token is sent only when the URL points at the hub endpoint.
	Token credential.Token
}

// Result describes a completed transfer.
type Result struct {
	Path    string
	Bytes   int64
	Skipped bool
}

// Fetcher acquires artifacts. Implementations must be safe to call
// sequentially with the same cache directory.
type Fetcher interface {
	FetchModel(ctx context.Context, req ModelRequest) (Result, error)
	FetchURL(ctx context.Context, req URLRequest) (Result, error)
}
