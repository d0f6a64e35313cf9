package failure_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"modelfarm/internal/failure"
)

func TestWrapIncludesDetailAndMarker(t *testing.T) {
	cause := errors.New("disk full")
	err := failure.Wrap(failure.ErrFilesystem, "linkfarm", "create symlink", "org_model.bin", cause)

	if !errors.Is(err, failure.ErrFilesystem) {
		t.Fatalf("expected filesystem marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	want := "filesystem error: linkfarm: create symlink: org_model.bin: disk full"
	if err.Error() != want {
		t.Fatalf("unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := failure.Wrap(failure.ErrConfig, "", "", "", nil)
	if !strings.Contains(err.Error(), "operation failed") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryableMatchesNetwork(t *testing.T) {
	err := failure.Wrap(failure.ErrRetryable, "fetch", "GET", "status 503", nil)
	if !errors.Is(err, failure.ErrNetwork) {
		t.Fatal("expected retryable error to match ErrNetwork")
	}
	if !failure.IsRetryable(err) {
		t.Fatal("expected IsRetryable to report true")
	}
	fatal := failure.Wrap(failure.ErrNetwork, "fetch", "GET", "status 404", nil)
	if failure.IsRetryable(fatal) {
		t.Fatal("expected fatal network error to be non-retryable")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, failure.ExitSuccess},
		{errors.New("boom"), failure.ExitGeneral},
		{failure.Wrap(failure.ErrConfig, "manifest", "", "", nil), failure.ExitConfig},
		{failure.Wrap(failure.ErrUsage, "linkfarm", "lock", "", nil), failure.ExitConfig},
		{fmt.Errorf("outer: %w", failure.ErrValidation), failure.ExitValidation},
		{failure.Wrap(failure.ErrCredential, "", "", "", nil), failure.ExitCredential},
		{failure.Wrap(failure.ErrRetryable, "", "", "", nil), failure.ExitNetwork},
		{failure.Wrap(failure.ErrResolution, "", "", "", nil), failure.ExitResolution},
		{failure.Wrap(failure.ErrFilesystem, "", "", "", nil), failure.ExitFilesystem},
	}
	for _, tt := range tests {
		if got := failure.ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
