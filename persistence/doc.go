// Package persistence provides binary snapshot serialization for vector
// indexes.
//
// A snapshot is a single opaque file: a fixed 64-byte header (magic, version,
// index kind, flags, CRC32) followed by the index payload, optionally
// compressed with LZ4 or ZSTD. Writes are atomic (temp file + fsync +
// rename), so a crash mid-save never corrupts an existing snapshot.
package persistence
