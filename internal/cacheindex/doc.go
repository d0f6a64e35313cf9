// Package cacheindex locates a repository's files inside the shared hub cache.
//
// The cache is indexed out of band, so a repository that was just downloaded
// may not be listed yet. Indexer implementations return typed Records; the
// only text parsing lives in ParseScanReport. Resolver polls an Indexer with a
// fixed backoff until the repository's main revision appears or the attempt
// ceiling is reached.
package cacheindex
