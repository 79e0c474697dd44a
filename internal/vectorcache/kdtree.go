package vectorcache

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/dshills/semlaunch/pkg/types"
)

// Hit is one nearest neighbor result, still keyed by id.
type Hit struct {
	Distance float32
	ID       types.ID
}

// KDTree is the exact tier: an in-memory k-d tree over squared Euclidean
// distance. Points are inserted as they are produced and never removed.
// KDTree is not safe for concurrent use; Cache guards it.
type KDTree struct {
	dim  int
	tree *kdtree.Tree
}

// point adapts a vector to kdtree.Comparable.
type point struct {
	vec []float32
	id  types.ID
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return float64(p.vec[d] - c.(point).vec[d])
}

func (p point) Dims() int { return len(p.vec) }

func (p point) Distance(c kdtree.Comparable) float64 {
	return float64(squaredEuclidean(p.vec, c.(point).vec))
}

// NewKDTree creates an empty tree for points of width dim.
func NewKDTree(dim int) *KDTree {
	return &KDTree{dim: dim, tree: &kdtree.Tree{}}
}

// Len returns the number of stored points.
func (t *KDTree) Len() int { return t.tree.Len() }

// Add inserts point under id. The slice is retained, callers must not modify it.
func (t *KDTree) Add(vec []float32, id types.ID) error {
	if len(vec) != t.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), t.dim)
	}
	t.tree.Insert(point{vec: vec, id: id}, false)
	return nil
}

// Nearest returns up to k hits ordered by ascending distance, ties by id. An
// empty tree yields an empty result.
func (t *KDTree) Nearest(query []float32, k int) ([]Hit, error) {
	if len(query) != t.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(query), t.dim)
	}
	if k <= 0 || t.tree.Len() == 0 {
		return []Hit{}, nil
	}

	keep := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keep, point{vec: query})

	hits := make([]Hit, 0, keep.Len())
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		hits = append(hits, Hit{Distance: float32(c.Dist), ID: c.Comparable.(point).id})
	}
	sortHits(hits)
	return hits, nil
}

func squaredEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
}
