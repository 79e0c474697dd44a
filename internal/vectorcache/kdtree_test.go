package vectorcache

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semlaunch/pkg/types"
)

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func bruteForce(points [][]float32, query []float32, k int) []Hit {
	hits := make([]Hit, len(points))
	for i, p := range points {
		hits[i] = Hit{Distance: squaredEuclidean(query, p), ID: types.ID(i)}
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
	return hits
}

func TestKDTree_Empty(t *testing.T) {
	tree := NewKDTree(4)
	hits, err := tree.Nearest([]float32{0, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NotNil(t, hits)
}

func TestKDTree_Dimension(t *testing.T) {
	tree := NewKDTree(4)
	assert.ErrorIs(t, tree.Add([]float32{1, 2}, 1), ErrDimension)

	_, err := tree.Nearest([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestKDTree_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const dim = 6
	points := randomVectors(rng, 500, dim)

	tree := NewKDTree(dim)
	for i, p := range points {
		require.NoError(t, tree.Add(p, types.ID(i)))
	}
	assert.Equal(t, len(points), tree.Len())

	for _, k := range []int{1, 5, 20, 600} {
		for q := 0; q < 20; q++ {
			query := randomVectors(rng, 1, dim)[0]
			got, err := tree.Nearest(query, k)
			require.NoError(t, err)
			assert.Equal(t, bruteForce(points, query, k), got)
		}
	}
}

func TestKDTree_DuplicateIDs(t *testing.T) {
	tree := NewKDTree(2)
	require.NoError(t, tree.Add([]float32{0, 0}, 7))
	require.NoError(t, tree.Add([]float32{1, 1}, 7))
	require.NoError(t, tree.Add([]float32{5, 5}, 8))

	hits, err := tree.Nearest([]float32{0.9, 0.9}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, types.ID(7), hits[0].ID)
	assert.Equal(t, types.ID(7), hits[1].ID)
	assert.InDelta(t, 0.02, hits[0].Distance, 1e-6)
}

func BenchmarkKDTreeNearest(b *testing.B) {
	rng := rand.New(rand.NewPCG(3, 4))
	const dim = 384
	tree := NewKDTree(dim)
	for i, p := range randomVectors(rng, 2000, dim) {
		_ = tree.Add(p, types.ID(i))
	}
	query := randomVectors(rng, 1, dim)[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tree.Nearest(query, 10)
	}
}
