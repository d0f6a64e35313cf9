// Package fetch transfers artifacts from the model hub and arbitrary URLs into
// the local cache.
//
// Model files are written in the hub cache layout
// (models--org--name/{blobs,snapshots,refs}) so the cache index tools can see
// them. Plain URLs are streamed to a temporary file and renamed into place.
// Responses with status 429, 500, 502, 503 or 504 are retried once after a
// fixed delay; any other non-success status fails immediately.
package fetch
