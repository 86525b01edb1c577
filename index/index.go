// Package index provides interfaces and types for vector search indexes.
package index

import (
	"context"
	"encoding"
	"errors"
	"fmt"

	"github.com/hupe1980/docvec/distance"
)

var (
	// ErrNotTrained is returned when vectors are added to a quantized index
	// before its one-time training pass has run.
	ErrNotTrained = errors.New("index is not trained")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrIDCountMismatch is returned when the number of ids does not match
	// the number of vectors passed to Add.
	ErrIDCountMismatch = errors.New("id count does not match vector count")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Kind identifies the index layout. It is resolved once when a factory spec
// is parsed, never re-derived from runtime type inspection.
type Kind uint8

const (
	// KindFlat is an exact index; it is always trained.
	KindFlat Kind = 1
	// KindIVF is an inverted-file index requiring a one-time training pass.
	KindIVF Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "Flat"
	case KindIVF:
		return "IVF"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Candidate is a single search hit.
type Candidate struct {
	// ID is the caller-assigned stable identity of the vector.
	ID int64

	// Score is metric-dependent: the dot product for inner-product search
	// (larger is better), the squared L2 distance otherwise (smaller is
	// better). Candidates are always returned best-first.
	Score float32
}

// SearchOptions controls the execution of a search.
type SearchOptions struct {
	// NProbes is the number of inverted-list partitions to probe.
	// Ignored by exact indexes. If <= 0, a single partition is probed.
	NProbes int
}

// Index is a vector search index with caller-assigned int64 identities.
//
// Implementations are safe for a single writer with concurrent readers only
// if documented as such; the engine serializes writes.
type Index interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler

	// Kind returns the index layout.
	Kind() Kind

	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// Metric returns the distance metric.
	Metric() distance.Metric

	// Trained reports whether the index accepts vectors. Exact indexes are
	// always trained.
	Trained() bool

	// Train runs the one-time calibration pass on the warm-up sample.
	// Training an already-trained index is a no-op.
	Train(ctx context.Context, vectors [][]float32) error

	// Add inserts vectors under the given stable ids.
	// Returns ErrNotTrained if the index requires training first.
	Add(ids []int64, vectors [][]float32) error

	// Search returns up to k candidates ordered best-first.
	Search(query []float32, k int, opts SearchOptions) ([]Candidate, error)

	// Count returns the number of stored vectors.
	Count() int
}
