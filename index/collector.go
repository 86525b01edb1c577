package index

import (
	"container/heap"
	"sort"

	"github.com/hupe1980/docvec/distance"
)

// Collector accumulates scan candidates, keeping only the k closest under
// the smaller-is-closer distance convention. It is shared by the index
// implementations so that partial scans (inverted lists) and full scans
// produce identically ordered results.
type Collector struct {
	k int
	h candidateHeap
}

// NewCollector creates a Collector for the k best candidates.
func NewCollector(k int) *Collector {
	return &Collector{k: k, h: make(candidateHeap, 0, k+1)}
}

// Push offers a candidate with its internal distance.
func (c *Collector) Push(id int64, dist float32) {
	if len(c.h) < c.k {
		heap.Push(&c.h, scored{id: id, dist: dist})
		return
	}
	if dist < c.h[0].dist {
		c.h[0] = scored{id: id, dist: dist}
		heap.Fix(&c.h, 0)
	}
}

// Results drains the collector, converting internal distances into
// user-facing scores for the metric and ordering candidates best-first.
func (c *Collector) Results(m distance.Metric) []Candidate {
	out := make([]Candidate, len(c.h))
	for i, s := range c.h {
		out[i] = Candidate{ID: s.id, Score: distance.ScoreFromDistance(m, s.dist)}
	}
	sort.Slice(out, func(i, j int) bool {
		if m == distance.MetricInnerProduct {
			return out[i].Score > out[j].Score
		}
		return out[i].Score < out[j].Score
	})
	return out
}

type scored struct {
	id   int64
	dist float32
}

// candidateHeap is a max-heap on distance so the worst candidate sits at the
// root and can be evicted cheaply.
type candidateHeap []scored

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
