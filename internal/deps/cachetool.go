package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultCacheTool is the hub CLI that reports cached revisions.
const DefaultCacheTool = "huggingface-cli"

// ResolveCacheTool returns the command used to scan the cache.
//
// A configured path is returned unchanged. A bare name is looked up on PATH
// and then in the user-level install directories pip and pipx use, since the
// hub CLI is commonly installed there without being on a service's PATH.
func ResolveCacheTool(configured string) string {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = DefaultCacheTool
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved
	}
	for _, dir := range userBinDirs() {
		candidate := filepath.Join(dir, executableName(name))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate
		}
	}
	return name
}

func userBinDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}
	return []string{
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, ".local", "pipx", "venvs", "huggingface-hub", "bin"),
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" && filepath.Ext(base) == "" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
