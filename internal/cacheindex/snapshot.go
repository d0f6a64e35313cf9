package cacheindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var repoTypePrefixes = map[string]string{
	"models--":   "model",
	"datasets--": "dataset",
	"spaces--":   "space",
}

// SnapshotIndexer reads refs directly from the cache tree instead of running
// the cache tool. It sees a download as soon as its ref file is written.
type SnapshotIndexer struct{}

func (SnapshotIndexer) Query(ctx context.Context, cacheDir string) ([]Record, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		repoType, repoID, ok := parseRepoFolder(entry.Name())
		if !ok {
			continue
		}
		repoDir := filepath.Join(cacheDir, entry.Name())
		byCommit, err := readRefs(filepath.Join(repoDir, "refs"))
		if err != nil {
			return nil, err
		}
		commits := make([]string, 0, len(byCommit))
		for commit := range byCommit {
			commits = append(commits, commit)
		}
		sort.Strings(commits)
		for _, commit := range commits {
			snapshot := filepath.Join(repoDir, "snapshots", commit)
			if info, err := os.Stat(snapshot); err != nil || !info.IsDir() {
				continue
			}
			refs := byCommit[commit]
			sort.Strings(refs)
			records = append(records, Record{
				RepoID:    repoID,
				RepoType:  repoType,
				Revision:  commit,
				Refs:      refs,
				LocalPath: snapshot,
			})
		}
	}
	return records, nil
}

func parseRepoFolder(name string) (repoType, repoID string, ok bool) {
	for prefix, kind := range repoTypePrefixes {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" {
			return "", "", false
		}
		return kind, strings.ReplaceAll(rest, "--", "/"), true
	}
	return "", "", false
}

// readRefs maps commit hashes to the ref names pointing at them. Nested refs
// such as refs/pr/1 keep their slash-separated name.
func readRefs(refsDir string) (map[string][]string, error) {
	byCommit := make(map[string][]string)
	err := filepath.WalkDir(refsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		commit := strings.TrimSpace(string(data))
		if commit == "" {
			return nil
		}
		rel, err := filepath.Rel(refsDir, path)
		if err != nil {
			return err
		}
		byCommit[commit] = append(byCommit[commit], filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read refs %s: %w", refsDir, err)
	}
	return byCommit, nil
}
