package vectorcache

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semlaunch/pkg/types"
)

func buildForest(t *testing.T, points [][]float32, trees int) *Forest {
	t.Helper()
	b := NewForestBuilder(len(points[0]))
	for i, p := range points {
		require.NoError(t, b.Add(types.ID(i), p))
	}
	return b.Build(trees, DefaultSeed)
}

func TestForest_Empty(t *testing.T) {
	f := NewForestBuilder(4).Build(3, 1)
	hits, err := f.Nearest([]float32{0, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestForest_FindsStoredPoints(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	points := randomVectors(rng, 400, 8)
	f := buildForest(t, points, 10)

	assert.Equal(t, 400, f.Len())
	assert.Equal(t, 10, f.Trees())

	for i := 0; i < 50; i++ {
		hits, err := f.Nearest(points[i], 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, types.ID(i), hits[0].ID)
		assert.Zero(t, hits[0].Distance)
	}
}

func TestForest_Recall(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	points := randomVectors(rng, 1000, 8)
	f := buildForest(t, points, DefaultTrees)

	found, total := 0, 0
	for q := 0; q < 30; q++ {
		query := randomVectors(rng, 1, 8)[0]
		want := bruteForce(points, query, 10)
		got, err := f.Nearest(query, 10)
		require.NoError(t, err)
		require.Len(t, got, 10)

		ids := map[types.ID]bool{}
		for _, h := range got {
			ids[h.ID] = true
		}
		for _, h := range want {
			total++
			if ids[h.ID] {
				found++
			}
		}
		// Distances are exact for whatever was found
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
		}
	}
	assert.Greater(t, float64(found)/float64(total), 0.8)
}

func TestForest_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	points := randomVectors(rng, 200, 4)
	a := buildForest(t, points, 5)
	b := buildForest(t, points, 5)

	query := []float32{0.1, -0.2, 0.3, 0}
	ha, err := a.Nearest(query, 7)
	require.NoError(t, err)
	hb, err := b.Nearest(query, 7)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestForest_DuplicatePoints(t *testing.T) {
	points := make([][]float32, 100)
	for i := range points {
		points[i] = []float32{1, 1, 1}
	}
	f := buildForest(t, points, 3)

	hits, err := f.Nearest([]float32{1, 1, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 5)
}

func TestSaveLoadForest(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	points := randomVectors(rng, 300, 8)
	f := buildForest(t, points, 4)

	path := filepath.Join(t.TempDir(), "sub", "index.bolt")
	require.NoError(t, SaveForest(path, f))

	loaded, err := LoadForest(path, 8)
	require.NoError(t, err)
	assert.Equal(t, f.Len(), loaded.Len())
	assert.Equal(t, f.Trees(), loaded.Trees())
	assert.Equal(t, 8, loaded.Dim())

	for q := 0; q < 10; q++ {
		query := randomVectors(rng, 1, 8)[0]
		want, err := f.Nearest(query, 5)
		require.NoError(t, err)
		got, err := loaded.Nearest(query, 5)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Overwriting an existing index works
	require.NoError(t, SaveForest(path, buildForest(t, points[:10], 2)))
	again, err := LoadForest(path, 8)
	require.NoError(t, err)
	assert.Equal(t, 10, again.Len())
}

func TestLoadForest_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadForest(filepath.Join(dir, "missing.bolt"), 8)
	assert.True(t, IsNotExist(err))

	garbage := filepath.Join(dir, "garbage.bolt")
	require.NoError(t, os.WriteFile(garbage, []byte("not a bolt file"), 0o600))
	_, err = LoadForest(garbage, 8)
	assert.Error(t, err)
	assert.False(t, IsNotExist(err))

	rng := rand.New(rand.NewPCG(1, 1))
	path := filepath.Join(dir, "dim4.bolt")
	require.NoError(t, SaveForest(path, buildForest(t, randomVectors(rng, 20, 4), 2)))
	_, err = LoadForest(path, 8)
	assert.ErrorIs(t, err, ErrDimension)
}

func TestNodeCodec(t *testing.T) {
	leaf := forestNode{items: []int32{3, 1, 4}}
	got, err := decodeNode(encodeNode(&leaf), 2)
	require.NoError(t, err)
	assert.Equal(t, leaf, got)

	split := forestNode{normal: []float32{0.5, -1}, offset: 0.25, left: 1, right: 2}
	got, err = decodeNode(encodeNode(&split), 2)
	require.NoError(t, err)
	assert.Equal(t, split, got)

	_, err = decodeNode(encodeNode(&split), 3)
	assert.ErrorIs(t, err, ErrCorruptIndex)

	_, err = decodeNode([]byte{9}, 2)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}
