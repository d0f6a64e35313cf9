// Package linkfarm maintains the flat directory of symlinks that exposes the
// enabled manifest entries to other processes.
//
// Link names are slugs of repo ids or config names. Targets are written
// relative to the link directory so the cache and link directories can be
// mounted together elsewhere. Every link operation first removes whatever
// symlink occupies the destination, which makes re-running idempotent.
package linkfarm
