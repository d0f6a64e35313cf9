package linkfarm

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"modelfarm/internal/failure"
)

// LockPath returns the lock file guarding a link directory. It lives beside
// the link directory so Reset never removes it.
func LockPath(linkDir string) string {
	clean := filepath.Clean(linkDir)
	return filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+".lock")
}

// Lock takes an exclusive lock on the link directory. A lock held by another
// run is reported as a usage error. Call the returned function to release it.
func (b *Builder) Lock() (func() error, error) {
	path := LockPath(b.LinkDir)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, failure.Wrap(failure.ErrFilesystem, "link builder", "acquire lock", path, err)
	}
	if !ok {
		return nil, failure.Wrap(failure.ErrUsage, "link builder", "acquire lock",
			fmt.Sprintf("another run holds %s", path), nil)
	}
	return lock.Unlock, nil
}
