package docvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docvec/index"
)

var (
	// ErrNotFound is returned when a search is issued before any index has
	// been built or appended to.
	ErrNotFound = errors.New("no index found, build or append first")

	// ErrLegacyIndex is returned when an on-disk snapshot predates id-mapped
	// indexes. Run UpgradeIndex once to rewrite it.
	ErrLegacyIndex = errors.New("snapshot is not id-mapped, run UpgradeIndex")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	return err
}
