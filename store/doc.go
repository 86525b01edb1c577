// Package store provides the durable SQLite-backed metadata store that is
// kept in lock-step with the vector index. Each row pairs a stable int64
// index id with the originating document id and the raw chunk text, so a
// search hit can always be resolved back to its source.
package store
