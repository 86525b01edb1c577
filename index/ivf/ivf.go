// Package ivf provides an inverted-file (IVF) approximate vector index.
//
// Vectors are partitioned by a k-means coarse quantizer learned in a one-time
// training pass. Searches probe only the partitions whose centroids are
// closest to the query, trading a small amount of recall for sub-linear scan
// cost.
package ivf

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/docvec/distance"
	"github.com/hupe1980/docvec/index"
	"github.com/hupe1980/docvec/internal/kmeans"
)

// Compile-time check that IVF satisfies the index interface.
var _ index.Index = (*IVF)(nil)

func init() {
	index.RegisterFactory(index.KindIVF, func() index.Index { return &IVF{} })
}

const defaultTrainIterations = 20

// Options contains configuration options for the IVF index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	Dimension int

	// Metric is the distance metric used for ranking.
	Metric distance.Metric

	// NList is the number of inverted-list partitions. When the training
	// sample holds fewer vectors than NList, the partition count is clamped
	// to the sample size.
	NList int

	// TrainIterations bounds the k-means training passes. Zero selects the
	// default.
	TrainIterations int
}

type partition struct {
	ids     []int64
	vectors []float32 // flattened
}

// IVF is an inverted-file index. It must be trained exactly once before
// vectors can be added; Train on a trained index is a no-op.
type IVF struct {
	opts      Options
	distFunc  distance.Func
	trained   bool
	nlist     int // effective partition count after clamping
	centroids []float32
	lists     []partition
	count     int
}

// New creates an untrained IVF index.
func New(opts Options) (*IVF, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("ivf: invalid dimension %d", opts.Dimension)
	}
	if opts.NList <= 0 {
		return nil, fmt.Errorf("ivf: invalid partition count %d", opts.NList)
	}
	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}
	if opts.TrainIterations <= 0 {
		opts.TrainIterations = defaultTrainIterations
	}
	return &IVF{opts: opts, distFunc: distFunc}, nil
}

// Kind returns index.KindIVF.
func (ix *IVF) Kind() index.Kind { return index.KindIVF }

// Dimension returns the fixed vector dimensionality.
func (ix *IVF) Dimension() int { return ix.opts.Dimension }

// Metric returns the configured distance metric.
func (ix *IVF) Metric() distance.Metric { return ix.opts.Metric }

// Trained reports whether the coarse quantizer has been learned.
func (ix *IVF) Trained() bool { return ix.trained }

// Count returns the number of stored vectors.
func (ix *IVF) Count() int { return ix.count }

// Train learns the coarse quantizer from the warm-up sample. It runs at most
// once per index lifetime; calling it again is a no-op.
func (ix *IVF) Train(ctx context.Context, vectors [][]float32) error {
	if ix.trained {
		return nil
	}
	if len(vectors) == 0 {
		return errors.New("ivf: no vectors provided for training")
	}

	dim := ix.opts.Dimension
	flat := make([]float32, 0, len(vectors)*dim)
	for _, v := range vectors {
		if len(v) != dim {
			return &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
		flat = append(flat, v...)
	}

	nlist := ix.opts.NList
	if len(vectors) < nlist {
		nlist = len(vectors)
	}

	centroids, err := kmeans.Train(ctx, flat, dim, nlist, ix.opts.Metric, ix.opts.TrainIterations)
	if err != nil {
		return err
	}
	if centroids == nil {
		// Clamped nlist never exceeds the sample size, so this only happens
		// on an empty sample, which is rejected above.
		return errors.New("ivf: training produced no centroids")
	}

	ix.nlist = nlist
	ix.centroids = centroids
	ix.lists = make([]partition, nlist)
	ix.trained = true
	return nil
}

// Add inserts vectors under the given stable ids.
// Returns index.ErrNotTrained when called before Train.
func (ix *IVF) Add(ids []int64, vectors [][]float32) error {
	if !ix.trained {
		return index.ErrNotTrained
	}
	if len(ids) != len(vectors) {
		return index.ErrIDCountMismatch
	}
	dim := ix.opts.Dimension
	for _, v := range vectors {
		if len(v) != dim {
			return &index.ErrDimensionMismatch{Expected: dim, Actual: len(v)}
		}
	}

	for i, v := range vectors {
		p, err := kmeans.AssignPartition(v, ix.centroids, dim, ix.opts.Metric)
		if err != nil {
			return err
		}
		ix.lists[p].ids = append(ix.lists[p].ids, ids[i])
		ix.lists[p].vectors = append(ix.lists[p].vectors, v...)
	}
	ix.count += len(vectors)
	return nil
}

// Search probes the opts.NProbes closest partitions and returns up to k
// candidates ordered best-first.
func (ix *IVF) Search(query []float32, k int, opts index.SearchOptions) ([]index.Candidate, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != ix.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: ix.opts.Dimension, Actual: len(query)}
	}
	if !ix.trained || ix.count == 0 {
		return nil, nil
	}

	nprobes := opts.NProbes
	if nprobes <= 0 {
		nprobes = 1
	}

	dim := ix.opts.Dimension
	probes, err := kmeans.FindClosestCentroids(query, ix.centroids, dim, nprobes, ix.opts.Metric)
	if err != nil {
		return nil, err
	}

	collector := index.NewCollector(k)
	for _, p := range probes {
		list := &ix.lists[p]
		for i, id := range list.ids {
			collector.Push(id, ix.distFunc(query, list.vectors[i*dim:(i+1)*dim]))
		}
	}
	return collector.Results(ix.opts.Metric), nil
}

// Binary layout (little-endian):
// [dimension uint32][metric uint8][configured nlist uint32][effective nlist uint32][trained uint8]
// [centroids float32 * effective nlist * dimension]
// then per partition: [count uint64][ids int64 * count][vectors float32 * count * dimension]
// Centroids and partitions are present only when trained.

// MarshalBinary implements encoding.BinaryMarshaler.
func (ix *IVF) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range []interface{}{
		uint32(ix.opts.Dimension),
		uint8(ix.opts.Metric),
		uint32(ix.opts.NList),
		uint32(ix.nlist),
		boolByte(ix.trained),
	} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, ix.centroids); err != nil {
		return nil, err
	}
	for i := range ix.lists {
		list := &ix.lists[i]
		if err := binary.Write(&buf, binary.LittleEndian, uint64(len(list.ids))); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, list.ids); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, list.vectors); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (ix *IVF) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var dim, confNList, nlist uint32
	var metric, trained uint8
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &metric); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &confNList); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &nlist); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &trained); err != nil {
		return err
	}
	if dim == 0 {
		return errors.New("ivf: corrupt payload: zero dimension")
	}

	ix.opts = Options{
		Dimension:       int(dim),
		Metric:          distance.Metric(metric),
		NList:           int(confNList),
		TrainIterations: defaultTrainIterations,
	}
	distFunc, err := distance.Provider(ix.opts.Metric)
	if err != nil {
		return err
	}
	ix.distFunc = distFunc
	ix.trained = trained == 1
	ix.nlist = int(nlist)
	ix.count = 0

	if !ix.trained {
		return nil
	}

	ix.centroids = make([]float32, uint64(nlist)*uint64(dim))
	if err := binary.Read(r, binary.LittleEndian, ix.centroids); err != nil {
		return err
	}

	ix.lists = make([]partition, nlist)
	for i := range ix.lists {
		var count uint64
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return err
		}
		list := &ix.lists[i]
		list.ids = make([]int64, count)
		if err := binary.Read(r, binary.LittleEndian, list.ids); err != nil {
			return err
		}
		list.vectors = make([]float32, count*uint64(dim))
		if err := binary.Read(r, binary.LittleEndian, list.vectors); err != nil {
			return err
		}
		ix.count += int(count)
	}
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
