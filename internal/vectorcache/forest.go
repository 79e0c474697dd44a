package vectorcache

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/dshills/semlaunch/pkg/types"
)

const (
	// DefaultTrees and DefaultSeed match the offline builder defaults.
	DefaultTrees = 30
	DefaultSeed  = 123

	leafSize = 16
)

// Forest is the approximate tier: a read-only forest of random projection
// trees. Each tree splits the items by hyperplanes through the midpoint of two
// sampled items. A query walks every tree best-first, gathers candidates, and
// ranks them by exact squared Euclidean distance so results are comparable
// with the exact tier.
type Forest struct {
	dim     int
	seed    uint64
	ids     []types.ID
	vectors [][]float32
	roots   []int32
	nodes   []forestNode
}

type forestNode struct {
	// Split nodes have children; leaves have items.
	normal      []float32
	offset      float32
	left, right int32
	items       []int32
}

func (n *forestNode) leaf() bool { return n.normal == nil }

// ForestBuilder accumulates vectors before building a Forest.
type ForestBuilder struct {
	dim     int
	ids     []types.ID
	vectors [][]float32
}

// NewForestBuilder creates a builder for vectors of width dim.
func NewForestBuilder(dim int) *ForestBuilder {
	return &ForestBuilder{dim: dim}
}

// Add queues a vector for id. Several vectors may share one id.
func (b *ForestBuilder) Add(id types.ID, vector []float32) error {
	if len(vector) != b.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vector), b.dim)
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	b.ids = append(b.ids, id)
	b.vectors = append(b.vectors, v)
	return nil
}

// Len returns the number of queued vectors.
func (b *ForestBuilder) Len() int { return len(b.ids) }

// Build constructs numTrees trees. The same seed and input give the same forest.
func (b *ForestBuilder) Build(numTrees int, seed uint64) *Forest {
	if numTrees <= 0 {
		numTrees = DefaultTrees
	}
	f := &Forest{
		dim:     b.dim,
		seed:    seed,
		ids:     b.ids,
		vectors: b.vectors,
	}
	if len(b.ids) == 0 {
		return f
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	all := make([]int32, len(b.ids))
	for i := range all {
		all[i] = int32(i)
	}
	for t := 0; t < numTrees; t++ {
		items := make([]int32, len(all))
		copy(items, all)
		f.roots = append(f.roots, f.split(items, rng))
	}
	return f
}

// split builds a subtree over items with an explicit worklist and returns its root index.
func (f *Forest) split(items []int32, rng *rand.Rand) int32 {
	type job struct {
		items []int32
		slot  int32
	}

	root := f.newNode()
	stack := []job{{items: items, slot: root}}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(j.items) <= leafSize {
			f.nodes[j.slot].items = j.items
			continue
		}

		normal, offset := f.hyperplane(j.items, rng)
		var left, right []int32
		for _, it := range j.items {
			if margin(normal, offset, f.vectors[it]) < 0 {
				left = append(left, it)
			} else {
				right = append(right, it)
			}
		}
		// Duplicate points cannot be separated by any plane; split arbitrarily.
		if len(left) == 0 || len(right) == 0 {
			rng.Shuffle(len(j.items), func(a, b int) { j.items[a], j.items[b] = j.items[b], j.items[a] })
			half := len(j.items) / 2
			left, right = j.items[:half], j.items[half:]
		}

		l, r := f.newNode(), f.newNode()
		f.nodes[j.slot].normal = normal
		f.nodes[j.slot].offset = offset
		f.nodes[j.slot].left = l
		f.nodes[j.slot].right = r
		stack = append(stack, job{items: left, slot: l}, job{items: right, slot: r})
	}
	return root
}

func (f *Forest) newNode() int32 {
	f.nodes = append(f.nodes, forestNode{})
	return int32(len(f.nodes) - 1)
}

func (f *Forest) hyperplane(items []int32, rng *rand.Rand) ([]float32, float32) {
	a := f.vectors[items[rng.IntN(len(items))]]
	b := f.vectors[items[rng.IntN(len(items))]]
	for tries := 0; tries < 3 && squaredEuclidean(a, b) == 0; tries++ {
		b = f.vectors[items[rng.IntN(len(items))]]
	}

	// The plane through the midpoint of a and b, perpendicular to a-b.
	normal := make([]float32, f.dim)
	mid := make([]float32, f.dim)
	copy(normal, a)
	copy(mid, a)
	blas32.Axpy(-1, vec(b), vec(normal))
	blas32.Axpy(1, vec(b), vec(mid))
	blas32.Scal(0.5, vec(mid))
	return normal, blas32.Dot(vec(normal), vec(mid))
}

func margin(normal []float32, offset float32, v []float32) float32 {
	return blas32.Dot(vec(normal), vec(v)) - offset
}

func vec(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

// Len returns the number of vectors in the forest.
func (f *Forest) Len() int { return len(f.ids) }

// Trees returns the number of trees.
func (f *Forest) Trees() int { return len(f.roots) }

// Dim returns the vector width.
func (f *Forest) Dim() int { return f.dim }

// Nearest returns up to k hits ordered by ascending squared Euclidean
// distance. Recall is approximate.
func (f *Forest) Nearest(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(query), f.dim)
	}
	if k <= 0 || len(f.roots) == 0 {
		return []Hit{}, nil
	}

	searchK := k * len(f.roots)
	pq := &nodeQueue{}
	for _, r := range f.roots {
		heap.Push(pq, nodePriority{node: r, priority: float32(math.Inf(1))})
	}

	seen := make(map[int32]struct{}, searchK)
	candidates := make([]int32, 0, searchK)
	for pq.Len() > 0 && len(candidates) < searchK {
		top := heap.Pop(pq).(nodePriority)
		n := &f.nodes[top.node]
		if n.leaf() {
			for _, it := range n.items {
				if _, ok := seen[it]; !ok {
					seen[it] = struct{}{}
					candidates = append(candidates, it)
				}
			}
			continue
		}
		m := margin(n.normal, n.offset, query)
		heap.Push(pq, nodePriority{node: n.right, priority: min(top.priority, m)})
		heap.Push(pq, nodePriority{node: n.left, priority: min(top.priority, -m)})
	}

	hits := make([]Hit, len(candidates))
	for i, it := range candidates {
		hits[i] = Hit{Distance: squaredEuclidean(query, f.vectors[it]), ID: f.ids[it]}
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

type nodePriority struct {
	node     int32
	priority float32
}

// nodeQueue is a max-heap on priority: the node whose path stayed furthest
// on the query's side of every plane is explored first.
type nodeQueue []nodePriority

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].priority > q[j].priority }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(nodePriority)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
