package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/DreamCats/caseindex/internal/embedding"
)

// Metric selects the dense distance function.
type Metric string

const (
	// MetricL2 is squared Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricCosine is one minus cosine similarity.
	MetricCosine Metric = "cosine"
)

// ParseMetric validates a metric name; empty selects MetricL2.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case "", MetricL2:
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown dense metric %q", name)
	}
}

// DenseHit is a dense neighbour with its distance to the query.
type DenseHit struct {
	ID       int
	Distance float64
}

// DenseIndex is an exact flat nearest-neighbour index held in memory.
// Position i holds the vector of chunk id i.
type DenseIndex struct {
	metric  Metric
	dims    int
	vectors [][]float32
}

// NewDenseIndex builds an index over vectors in id order.
func NewDenseIndex(vectors [][]float32, metric Metric) (*DenseIndex, error) {
	idx := &DenseIndex{metric: metric, vectors: vectors}
	for i, v := range vectors {
		if i == 0 {
			idx.dims = len(v)
			continue
		}
		if len(v) != idx.dims {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), idx.dims)
		}
	}
	return idx, nil
}

// Len returns the number of indexed vectors.
func (d *DenseIndex) Len() int { return len(d.vectors) }

// Dimensions returns the vector size, or 0 for an empty index.
func (d *DenseIndex) Dimensions() int { return d.dims }

// Search returns up to k nearest ids ordered by ascending distance, ties by ascending id.
func (d *DenseIndex) Search(query []float32, k int) ([]DenseHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if k <= 0 || len(d.vectors) == 0 {
		return nil, nil
	}
	if len(query) != d.dims {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), d.dims)
	}

	hits := make([]DenseHit, len(d.vectors))
	for id, v := range d.vectors {
		hits[id] = DenseHit{ID: id, Distance: d.distance(query, v)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (d *DenseIndex) distance(a, b []float32) float64 {
	if d.metric == MetricCosine {
		return 1 - float64(embedding.Similarity(a, b))
	}
	return float64(embedding.SquaredL2(a, b))
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vector, nil
}
