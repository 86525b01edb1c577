// Package flat provides an exact (brute-force) vector index.
package flat

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/docvec/distance"
	"github.com/hupe1980/docvec/index"
)

// Compile-time check that Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

func init() {
	index.RegisterFactory(index.KindFlat, func() index.Index { return &Flat{} })
}

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all adds and searches.
	Dimension int

	// Metric is the distance metric used for ranking.
	Metric distance.Metric
}

// Flat is an exact index storing full-precision vectors. Searches scan every
// stored vector, so results are exact rather than approximate. A flat index
// is always trained.
type Flat struct {
	opts     Options
	distFunc distance.Func
	ids      []int64
	vectors  []float32 // flattened, len == count*dim
}

// New creates a flat index.
func New(opts Options) (*Flat, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("flat: invalid dimension %d", opts.Dimension)
	}
	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}
	return &Flat{opts: opts, distFunc: distFunc}, nil
}

// Kind returns index.KindFlat.
func (f *Flat) Kind() index.Kind { return index.KindFlat }

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Metric returns the configured distance metric.
func (f *Flat) Metric() distance.Metric { return f.opts.Metric }

// Trained always reports true; exact indexes need no calibration.
func (f *Flat) Trained() bool { return true }

// Train is a no-op for exact indexes.
func (f *Flat) Train(context.Context, [][]float32) error { return nil }

// Count returns the number of stored vectors.
func (f *Flat) Count() int { return len(f.ids) }

// Add inserts vectors under the given stable ids.
func (f *Flat) Add(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return index.ErrIDCountMismatch
	}
	for _, v := range vectors {
		if len(v) != f.opts.Dimension {
			return &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(v)}
		}
	}
	for i, v := range vectors {
		f.ids = append(f.ids, ids[i])
		f.vectors = append(f.vectors, v...)
	}
	return nil
}

// Search returns up to k candidates ordered best-first.
func (f *Flat) Search(query []float32, k int, _ index.SearchOptions) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}

	dim := f.opts.Dimension
	collector := index.NewCollector(k)
	for i, id := range f.ids {
		collector.Push(id, f.distFunc(query, f.vectors[i*dim:(i+1)*dim]))
	}
	return collector.Results(f.opts.Metric), nil
}

// Binary layout (little-endian):
// [dimension uint32][metric uint8][count uint64][ids int64 * count][vectors float32 * count * dimension]

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *Flat) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(f.opts.Dimension)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint8(f.opts.Metric)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(f.ids))); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, f.ids); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, f.vectors); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Flat) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return err
	}
	var metric uint8
	if err := binary.Read(r, binary.LittleEndian, &metric); err != nil {
		return err
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	if dim == 0 {
		return errors.New("flat: corrupt payload: zero dimension")
	}

	f.opts = Options{Dimension: int(dim), Metric: distance.Metric(metric)}
	distFunc, err := distance.Provider(f.opts.Metric)
	if err != nil {
		return err
	}
	f.distFunc = distFunc

	f.ids = make([]int64, count)
	if err := binary.Read(r, binary.LittleEndian, f.ids); err != nil {
		return err
	}
	f.vectors = make([]float32, count*uint64(dim))
	if err := binary.Read(r, binary.LittleEndian, f.vectors); err != nil {
		return err
	}
	return nil
}
