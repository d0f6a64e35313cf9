package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig marks malformed or missing manifest keys and unusable settings.
	ErrConfig = errors.New("configuration error")
	// ErrValidation marks duplicate or dangling manifest entries.
	ErrValidation = errors.New("validation error")
	// ErrCredential marks a missing, malformed, or empty token reference.
	ErrCredential = errors.New("credential error")
	// ErrNetwork marks a failed transfer that should not be retried.
	ErrNetwork = errors.New("network error")
	// ErrRetryable marks a transfer failure whose status code permits one retry.
	// Errors carrying it also match ErrNetwork.
	ErrRetryable = &retryableMarker{}
	// ErrResolution marks a repo the cache index never reported.
	ErrResolution = errors.New("resolution error")
	// ErrFilesystem marks symlink and directory failures.
	ErrFilesystem = errors.New("filesystem error")
	// ErrUsage marks invalid invocations such as a concurrent run.
	ErrUsage = errors.New("usage error")
)

type retryableMarker struct{}

func (*retryableMarker) Error() string { return "retryable network error" }

func (*retryableMarker) Is(target error) bool { return target == ErrNetwork }

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrFilesystem
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Exit codes returned by the CLI for each error class.
const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitConfig     = 2
	ExitValidation = 3
	ExitCredential = 4
	ExitNetwork    = 5
	ExitResolution = 6
	ExitFilesystem = 7
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrConfig), errors.Is(err, ErrUsage):
		return ExitConfig
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrCredential):
		return ExitCredential
	case errors.Is(err, ErrNetwork):
		return ExitNetwork
	case errors.Is(err, ErrResolution):
		return ExitResolution
	case errors.Is(err, ErrFilesystem):
		return ExitFilesystem
	default:
		return ExitGeneral
	}
}

// IsRetryable reports whether err permits another transfer attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
