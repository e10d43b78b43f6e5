/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Book collections frequently live on network shares. Stat, open and directory
reads issued by the library go through this package so that a transient
ESTALE (errno 116) does not turn into a spurious "book missing" verdict during
reconciliation.

# Usage

	info, err := filesystem.StatWithRetry("/books/novel.fb2", filesystem.DefaultRetryConfig())

	entries, err := filesystem.ReadDirWithRetry("/books", filesystem.DefaultRetryConfig())

# Retry Behavior

The defaults are 3 retries with exponential backoff from 50ms capped at 500ms.
Only ESTALE triggers a retry; every other error is returned immediately.
Retry counts and durations are labeled by operation and by volume name as
resolved by the package-level [VolumeResolver].
*/
package filesystem
