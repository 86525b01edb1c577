// Package distance provides the public API for vector distance calculations.
package distance

import (
	"fmt"
	"slices"

	"github.com/hupe1980/docvec/internal/math32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// NegativeDot returns the negated dot product so that smaller values mean
// closer vectors, matching the ordering contract of the other metrics.
func NegativeDot(a, b []float32) float32 {
	return -math32.Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := math32.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / math32.Sqrt(norm2)
	math32.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricL2 orders results by squared Euclidean distance (smaller is closer).
	MetricL2 Metric = iota
	// MetricInnerProduct orders results by dot product (larger is closer).
	// Combined with L2-normalized vectors it behaves like cosine similarity.
	MetricInnerProduct
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricInnerProduct:
		return "InnerProduct"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation.
// All provided functions return values where smaller means closer.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// The returned function follows the smaller-is-closer convention; callers
// that expose similarity scores must convert via ScoreFromDistance.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricInnerProduct:
		return NegativeDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %s", m)
	}
}

// ScoreFromDistance converts an internal smaller-is-closer distance into the
// user-facing score for the metric: the raw distance for L2, the dot product
// for inner product.
func ScoreFromDistance(m Metric, d float32) float32 {
	if m == MetricInnerProduct {
		return -d
	}
	return d
}
