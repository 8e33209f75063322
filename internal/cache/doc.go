// Package cache defines the disk-backed store that mirrors a remote file tree
// under a single root directory. Entries are identified only by their relative
// path: the presence of a file at <root>/<path> is the sole cache-hit signal,
// with no hashing, TTL or staleness checks. The store downloads on miss,
// keeps small JSON snapshots next to mirrored files, and deletes on request.
// It is not safe for concurrent writers: there is no locking and downloads are
// written in place, so an interrupted transfer leaves a partial file that the
// next run treats as a hit unless the caller forces a refetch.
package cache
