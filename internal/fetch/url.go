package fetch

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"modelfarm/internal/failure"
	"modelfarm/internal/logging"
)

// FetchURL downloads req.URL to req.Dest. An existing destination is
// reported as skipped and left untouched.
func (c *HubClient) FetchURL(ctx context.Context, req URLRequest) (Result, error) {
	if strings.TrimSpace(req.URL) == "" {
		return Result{}, failure.Wrap(failure.ErrConfig, "fetch", "download", "url is empty", nil)
	}
	if info, err := os.Stat(req.Dest); err == nil && !info.IsDir() {
		c.logger.Debug("file already present",
			logging.String(logging.FieldURL, req.URL),
			logging.String(logging.FieldPath, req.Dest),
		)
		return Result{Path: req.Dest, Bytes: info.Size(), Skipped: true}, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Result{}, failure.Wrap(failure.ErrFilesystem, "fetch", "inspect destination", req.Dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return Result{}, failure.Wrap(failure.ErrFilesystem, "fetch", "create destination dir", req.Dest, err)
	}

	token := ""
	if c.sameHost(req.URL) {
		token = req.Token.Reveal()
	}
	var written int64
	err := c.withRetry(ctx, req.URL, func() error {
		var err error
		written, err = c.download(ctx, req.URL, token, req.Dest, filepath.Base(req.Dest))
		return err
	})
	if err != nil {
		return Result{}, wrapNetwork("download", req.URL, err)
	}
	c.logger.Info("file downloaded",
		logging.String(logging.FieldURL, req.URL),
		logging.String(logging.FieldPath, req.Dest),
		logging.String("size", humanBytes(written)),
	)
	return Result{Path: req.Dest, Bytes: written}, nil
}

func (c *HubClient) sameHost(raw string) bool {
	target, err := url.Parse(raw)
	if err != nil {
		return false
	}
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return false
	}
	return strings.EqualFold(target.Host, base.Host)
}
