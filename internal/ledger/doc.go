// Package ledger records the history of modelfarm runs in a SQLite database
// under the state directory.
//
// Each run gets one row in runs, and every artifact the run fetched, skipped
// or linked gets a row in artifacts. The ledger is informational: the cache
// and link directories remain the source of truth.
package ledger
