package cacheindex

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

var commandContext = exec.CommandContext

// Column positions in the verbose scan-cache report. The relative-time column
// is either three tokens ("2 days ago") or four ("a few seconds ago"), so the
// refs column drifts by one.
const (
	colRepoID   = 0
	colRepoType = 1
	colRevision = 2
	colRefs     = 8
)

// ParseScanReport converts verbose scan-cache output into records. Lines that
// do not carry a recognisable refs column, including headers, separators and
// the trailing summary, are skipped. Records keep report order.
func ParseScanReport(lines []string) []Record {
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) <= colRefs+1 {
			continue
		}
		if strings.HasPrefix(fields[colRepoID], "---") {
			continue
		}
		for _, col := range []int{colRefs, colRefs + 1} {
			if col+1 >= len(fields) {
				break
			}
			refs := splitRefs(fields[col])
			if !slices.Contains(refs, MainRevision) {
				continue
			}
			records = append(records, Record{
				RepoID:    fields[colRepoID],
				RepoType:  fields[colRepoType],
				Revision:  fields[colRevision],
				Refs:      refs,
				LocalPath: fields[col+1],
			})
			break
		}
	}
	return records
}

func splitRefs(field string) []string {
	parts := strings.Split(field, ",")
	refs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			refs = append(refs, p)
		}
	}
	return refs
}

// ScanOption configures a ScanCacheIndexer.
type ScanOption func(*ScanCacheIndexer)

// WithBinary overrides the cache tool binary.
func WithBinary(binary string) ScanOption {
	return func(s *ScanCacheIndexer) {
		if binary = strings.TrimSpace(binary); binary != "" {
			s.binary = binary
		}
	}
}

// ScanCacheIndexer queries the cache by running `<binary> scan-cache -vvv --dir`.
type ScanCacheIndexer struct {
	binary string
}

// NewScanCacheIndexer builds an indexer that shells out to huggingface-cli.
func NewScanCacheIndexer(opts ...ScanOption) *ScanCacheIndexer {
	s := &ScanCacheIndexer{binary: "huggingface-cli"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Binary returns the configured cache tool.
func (s *ScanCacheIndexer) Binary() string { return s.binary }

func (s *ScanCacheIndexer) Query(ctx context.Context, cacheDir string) ([]Record, error) {
	args := []string{"scan-cache", "-vvv", "--dir", cacheDir}
	cmd := commandContext(ctx, s.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s scan-cache: %w: %s", s.binary, err, detail)
		}
		return nil, fmt.Errorf("%s scan-cache: %w", s.binary, err)
	}

	var lines []string
	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scan-cache output: %w", err)
	}
	return ParseScanReport(lines), nil
}
