/*
Package filesystem wraps the handful of filesystem operations the document
store performs.

# Retries

StatWithRetry and OpenWithRetry retry only on ESTALE (stale NFS file handle),
with exponential backoff (defaults: 3 retries, 50ms doubling to 500ms). Every
other error is returned immediately.

# Atomic replacement

WriteFileAtomic and WriteReaderAtomic write to a temporary file in the target
directory, fsync it, and rename it over the destination, so readers observe
either the old file or the complete new one. ReplaceFile renames an already
written file into place.

# Metrics

Operations are reported to an Observer (see SetObserver), labelled with the
volume name resolved by a VolumeResolver.
*/
package filesystem
