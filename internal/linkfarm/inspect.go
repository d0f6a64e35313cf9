package linkfarm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"modelfarm/internal/failure"
)

// LinkState describes a symlink found in the link directory.
type LinkState struct {
	Name     string
	Target   string
	Dangling bool
}

// Inspect lists the symlinks in the link directory sorted by name. Regular
// files and directories are ignored. A missing link directory yields no
// entries.
func (b *Builder) Inspect() ([]LinkState, error) {
	entries, err := os.ReadDir(b.LinkDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, failure.Wrap(failure.ErrFilesystem, "link builder", "inspect", b.LinkDir, err)
	}
	states := make([]LinkState, 0, len(entries))
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(b.LinkDir, entry.Name())
		target, err := os.Readlink(path)
		if err != nil {
			return nil, failure.Wrap(failure.ErrFilesystem, "link builder", "read link", path, err)
		}
		_, statErr := os.Stat(path)
		states = append(states, LinkState{
			Name:     entry.Name(),
			Target:   target,
			Dangling: statErr != nil,
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states, nil
}

// Index returns the states keyed by link name.
func Index(states []LinkState) map[string]LinkState {
	byName := make(map[string]LinkState, len(states))
	for _, s := range states {
		byName[s.Name] = s
	}
	return byName
}

// Describe renders a state for display.
func (s LinkState) Describe() string {
	if s.Dangling {
		return fmt.Sprintf("%s -> %s (dangling)", s.Name, s.Target)
	}
	return fmt.Sprintf("%s -> %s", s.Name, s.Target)
}
