// Package vector provides an exact nearest-neighbor index over chunk
// embeddings, persisted as a vector artifact plus a parallel metadata
// artifact. Brute-force squared-Euclidean search is deliberate: corpora here
// are single-digit thousands of chunks, where exact search is both fast
// enough and deterministic.
package vector

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyIndex rejects building an index over zero vectors.
	ErrEmptyIndex = errors.New("cannot build an index over zero vectors")

	// ErrIndexNotFound means no index has been persisted yet. Before the
	// first ingestion this is the normal state, not a fault.
	ErrIndexNotFound = errors.New("no vector index has been built yet")
)

// Metadata is the provenance stored alongside vector i in the index.
type Metadata struct {
	Document string `json:"doc"`
	Page     int    `json:"page"`
	Text     string `json:"text"`
}

// Result is one search hit, closest first in a result list.
type Result struct {
	Distance float32
	Meta     Metadata
}

// Index pairs vectors with metadata positionally: entry i of metas describes
// vector i. All vectors share one dimension, fixed at build time.
type Index struct {
	dim     int
	vectors [][]float32
	metas   []Metadata
}

// Build validates vectors and metadata and assembles an Index.
func Build(vectors [][]float32, metas []Metadata) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("vectors and metadata length mismatch: %d vs %d", len(vectors), len(metas))
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("vectors must have a non-zero dimension")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	return &Index{dim: dim, vectors: vectors, metas: metas}, nil
}

func (ix *Index) Len() int       { return len(ix.vectors) }
func (ix *Index) Dimension() int { return ix.dim }

// Vectors exposes the stored vectors. Callers must treat the result as
// read-only.
func (ix *Index) Vectors() [][]float32 { return ix.vectors }

// Metas exposes the stored metadata. Callers must treat the result as
// read-only.
func (ix *Index) Metas() []Metadata { return ix.metas }

// Search returns the k entries nearest to query by squared Euclidean
// distance, ascending. Fewer than k entries returns all of them. Ties are
// broken by index position, so results are deterministic for a fixed index
// and query.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	type scored struct {
		pos  int
		dist float32
	}
	all := make([]scored, len(ix.vectors))
	for i, v := range ix.vectors {
		var d float32
		for j := range v {
			diff := v[j] - query[j]
			d += diff * diff
		}
		all[i] = scored{pos: i, dist: d}
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].dist != all[b].dist {
			return all[a].dist < all[b].dist
		}
		return all[a].pos < all[b].pos
	})

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{Distance: all[i].dist, Meta: ix.metas[all[i].pos]}
	}
	return results, nil
}
