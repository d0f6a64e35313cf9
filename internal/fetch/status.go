package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"modelfarm/internal/failure"
	"modelfarm/internal/logging"
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status permits a retry.
func (e *StatusError) Retryable() bool {
	return IsRetryableStatus(e.StatusCode)
}

// Is lets errors.Is classify the response as retryable or fatal.
func (e *StatusError) Is(target error) bool {
	if target == failure.ErrNetwork {
		return true
	}
	return target == failure.ErrRetryable && e.Retryable()
}

// IsRetryableStatus reports whether code is one of 429, 500, 502, 503, 504.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func statusHint(code int) string {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "check that the token has read access to the repository"
	case http.StatusNotFound:
		return "check the repo_id, filename, or url in the manifest"
	case http.StatusTooManyRequests:
		return "the hub is rate limiting requests; try again later"
	default:
		return ""
	}
}

func contextSleep(ctx context.Context, d time.Duration) error {
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

// withRetry runs op, and runs it once more after the retry delay when the
// first failure is retryable.
func (c *HubClient) withRetry(ctx context.Context, label string, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, failure.ErrRetryable) {
		return err
	}
	logging.WarnWithContext(c.logger, "transfer failed; retrying once", "fetch_retry",
		logging.String(logging.FieldURL, label),
		logging.Duration("delay", c.retryDelay),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the server reported a transient failure"),
		logging.String(logging.FieldImpact, "download delayed"),
	)
	if sleepErr := c.sleep(ctx, c.retryDelay); sleepErr != nil {
		return sleepErr
	}
	if err := op(); err != nil {
		if errors.Is(err, failure.ErrRetryable) {
			return fmt.Errorf("%w (after retry)", err)
		}
		return err
	}
	return nil
}
