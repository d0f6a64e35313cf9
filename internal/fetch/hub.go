package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"modelfarm/internal/failure"
	"modelfarm/internal/fileutil"
	"modelfarm/internal/logging"
)

// Defaults for HubClient.
const (
	DefaultEndpoint   = "https://huggingface.co"
	DefaultRetryDelay = 5 * time.Second
	DefaultUserAgent  = "modelfarm"
)

// Option configures a HubClient.
type Option func(*HubClient)

// WithEndpoint overrides the hub base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *HubClient) {
		if endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/"); endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HubClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *HubClient) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRetryDelay sets the wait before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *HubClient) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithSleep replaces the wait used before retrying.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *HubClient) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HubClient) {
		c.logger = logging.NewComponentLogger(logger, "fetch")
	}
}

// WithProgress sets how transfer progress is reported.
func WithProgress(p *Progress) Option {
	return func(c *HubClient) {
		c.progress = p
	}
}

// HubClient downloads from a model hub over HTTP.
type HubClient struct {
	endpoint   string
	client     *http.Client
	userAgent  string
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
	progress   *Progress
}

// NewHubClient constructs a client with defaults applied.
func NewHubClient(opts ...Option) *HubClient {
	c := &HubClient{
		endpoint:   DefaultEndpoint,
		client:     &http.Client{},
		userAgent:  DefaultUserAgent,
		retryDelay: DefaultRetryDelay,
		sleep:      contextSleep,
		logger:     logging.NewComponentLogger(nil, "fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RepoFolderName returns the cache folder for a model repository.
func RepoFolderName(repoID string) string {
	return "models--" + strings.ReplaceAll(repoID, "/", "--")
}

type fileMetadata struct {
	commit string
	etag   string
	size   int64
}

// FetchModel places repoID/filename in the cache at revision main. A file
// already present in the main snapshot is not downloaded again.
func (c *HubClient) FetchModel(ctx context.Context, req ModelRequest) (Result, error) {
	label := req.RepoID + "/" + req.Filename
	repoDir := filepath.Join(req.CacheDir, RepoFolderName(req.RepoID))
	if existing, ok := cachedSnapshotFile(repoDir, req.Filename); ok {
		c.logger.Debug("model file already cached",
			logging.String(logging.FieldRepoID, req.RepoID),
			logging.String(logging.FieldPath, existing),
		)
		return Result{Path: existing, Skipped: true}, nil
	}

	fileURL := c.resolveURL(req.RepoID, req.Filename)
	var meta fileMetadata
	err := c.withRetry(ctx, fileURL, func() error {
		var err error
		meta, err = c.headMetadata(ctx, fileURL, req.Token.Reveal())
		return err
	})
	if err != nil {
		return Result{}, wrapNetwork("resolve metadata", label, err)
	}

	blobPath := filepath.Join(repoDir, "blobs", meta.etag)
	snapshotFile := filepath.Join(repoDir, "snapshots", meta.commit, filepath.FromSlash(req.Filename))
	result := Result{Path: snapshotFile, Bytes: meta.size}

	reused := false
	if _, err := os.Stat(blobPath); err == nil {
		reused = true
	} else {
		if err := os.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
			return Result{}, failure.Wrap(failure.ErrFilesystem, "fetch", "create blobs dir", label, err)
		}
		err = c.withRetry(ctx, fileURL, func() error {
			n, err := c.download(ctx, fileURL, req.Token.Reveal(), blobPath, path.Base(req.Filename))
			result.Bytes = n
			return err
		})
		if err != nil {
			return Result{}, wrapNetwork("download", label, err)
		}
	}

	if err := linkSnapshot(blobPath, snapshotFile); err != nil {
		return Result{}, failure.Wrap(failure.ErrFilesystem, "fetch", "link snapshot", label, err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(repoDir, "refs", "main"), []byte(meta.commit), 0o644); err != nil {
		return Result{}, failure.Wrap(failure.ErrFilesystem, "fetch", "write ref", label, err)
	}
	c.logger.Info("model file cached",
		logging.String(logging.FieldRepoID, req.RepoID),
		logging.String("filename", req.Filename),
		logging.String("revision", meta.commit),
		logging.String("size", humanBytes(result.Bytes)),
		logging.Bool("reused_blob", reused),
	)
	return result, nil
}

func (c *HubClient) resolveURL(repoID, filename string) string {
	segments := strings.Split(filename, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/resolve/main/%s", c.endpoint, repoID, strings.Join(segments, "/"))
}

// headMetadata reads the commit and blob id of a file without following the
// CDN redirect, since the hub headers live on the first response.
func (c *HubClient) headMetadata(ctx context.Context, fileURL, token string) (fileMetadata, error) {
	req, err := c.newRequest(ctx, http.MethodHead, fileURL, token)
	if err != nil {
		return fileMetadata{}, err
	}
	client := *c.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Do(req)
	if err != nil {
		return fileMetadata{}, fmt.Errorf("HEAD %s: %w", fileURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fileMetadata{}, &StatusError{URL: fileURL, StatusCode: resp.StatusCode}
	}
	meta := fileMetadata{
		commit: strings.TrimSpace(resp.Header.Get("X-Repo-Commit")),
		etag:   normalizeETag(firstNonEmpty(resp.Header.Get("X-Linked-Etag"), resp.Header.Get("ETag"))),
		size:   resp.ContentLength,
	}
	if linked := resp.Header.Get("X-Linked-Size"); linked != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(linked), 10, 64); err == nil {
			meta.size = n
		}
	}
	if meta.commit == "" {
		return fileMetadata{}, fmt.Errorf("HEAD %s: response has no X-Repo-Commit header", fileURL)
	}
	if meta.etag == "" {
		return fileMetadata{}, fmt.Errorf("HEAD %s: response has no ETag header", fileURL)
	}
	return meta, nil
}

func (c *HubClient) newRequest(ctx context.Context, method, target, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// download streams target into dest through a temporary sibling file.
func (c *HubClient) download(ctx context.Context, target, token, dest, display string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, target, token)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	tracker := c.progress.Start(display, resp.ContentLength)
	var written int64
	var copyErr error
	err = fileutil.WriteStreamAtomic(dest, 0o644, func(w io.Writer) error {
		written, copyErr = io.Copy(io.MultiWriter(w, tracker), resp.Body)
		if copyErr != nil {
			copyErr = fmt.Errorf("reading %s: %w", target, copyErr)
		}
		return copyErr
	})
	tracker.Finish()
	switch {
	case copyErr != nil:
		return written, copyErr
	case err != nil:
		return written, failure.Wrap(failure.ErrFilesystem, "fetch", "write", dest, err)
	}
	return written, nil
}

func cachedSnapshotFile(repoDir, filename string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(repoDir, "refs", "main"))
	if err != nil {
		return "", false
	}
	commit := strings.TrimSpace(string(data))
	if commit == "" {
		return "", false
	}
	candidate := filepath.Join(repoDir, "snapshots", commit, filepath.FromSlash(filename))
	if _, err := os.Stat(candidate); err != nil {
		return "", false
	}
	return candidate, true
}

// linkSnapshot points the snapshot file at its blob with a relative symlink.
func linkSnapshot(blobPath, snapshotFile string) error {
	if err := os.MkdirAll(filepath.Dir(snapshotFile), 0o755); err != nil {
		return err
	}
	target, err := filepath.Rel(filepath.Dir(snapshotFile), blobPath)
	if err != nil {
		return err
	}
	if current, err := os.Readlink(snapshotFile); err == nil && current == target {
		return nil
	}
	if err := os.Remove(snapshotFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(target, snapshotFile)
}

func normalizeETag(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "W/")
	return strings.Trim(value, `"`)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func wrapNetwork(operation, label string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if hint := statusHint(statusErr.StatusCode); hint != "" {
			label = label + " (" + hint + ")"
		}
	}
	if errors.Is(err, failure.ErrFilesystem) {
		return failure.Wrap(failure.ErrFilesystem, "fetch", operation, label, err)
	}
	return failure.Wrap(failure.ErrNetwork, "fetch", operation, label, err)
}
