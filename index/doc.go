// Package index provides vector index interfaces and implementations.
//
// Two index kinds are supported:
//
//   - flat: exact brute-force search; always trained, no calibration pass.
//   - ivf: inverted-file approximate search; requires a one-time k-means
//     training pass before vectors can be added.
//
// The kind is resolved once from a factory specification string (see
// ParseSpec) and carried as a tag on the index; callers never branch on the
// concrete Go type at operation time.
//
// All indexes are id-mapped: every vector carries a caller-assigned int64
// identity that is stable across persistence round-trips.
package index
