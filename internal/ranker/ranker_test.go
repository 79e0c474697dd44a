package ranker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semlaunch/internal/scheduler"
	"github.com/dshills/semlaunch/pkg/types"
)

type fakeIndex struct {
	neighbors []types.Neighbor
	err       error
	asked     []int
}

func (f *fakeIndex) Nearest(_ context.Context, _ []float32, count int) ([]types.Neighbor, error) {
	f.asked = append(f.asked, count)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.neighbors) > count {
		return f.neighbors[:count], nil
	}
	return f.neighbors, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) EmbedPriority(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{{1, 2, 3}}, nil
}

// tree creates files (and their parent dirs) under a fresh temp dir and
// returns its canonical path.
func tree(t *testing.T, files ...string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, f := range files {
		full := filepath.Join(root, f)
		if filepath.Ext(f) == "" && f[len(f)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("hello\n\nworld"), 0o644))
	}
	return root
}

func newRanker(t *testing.T, cwd string, idx NearestIndex, emb QueryEmbedder, opts ...Option) *Ranker {
	t.Helper()
	sched := scheduler.New(scheduler.NewQueue(), nil, nil, nil)
	opts = append([]Option{WithWorkingDir(cwd)}, opts...)
	r, err := New(sched, idx, emb, opts...)
	require.NoError(t, err)
	return r
}

func TestGetResults_EmptyInputEmptyDir(t *testing.T) {
	root := tree(t)
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	got := r.GetResults(context.Background(), "", 10)
	assert.Equal(t, []types.RankResult{
		{Path: root, Source: types.SourceExactPath, Score: 0},
	}, got)
}

func TestGetResults_DirectoryChildren(t *testing.T) {
	root := tree(t, "src/main.rs", "src/lib.rs")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	got := r.GetResults(context.Background(), "src", 10)
	assert.Equal(t, []types.RankResult{
		{Path: filepath.Join(root, "src"), Source: types.SourceExactPath, Score: 0},
		{Path: filepath.Join(root, "src", "lib.rs"), Source: types.SourceInDir, Score: 2},
		{Path: filepath.Join(root, "src", "main.rs"), Source: types.SourceInDir, Score: 2},
	}, got)
}

func TestGetResults_TrimsInput(t *testing.T) {
	root := tree(t, "notes.txt")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	got := r.GetResults(context.Background(), "  notes.txt \n", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, types.RankResult{
		Path: filepath.Join(root, "notes.txt"), Source: types.SourceExactPath, Score: 0,
	}, got[0])
}

func TestGetResults_PrefixMatch(t *testing.T) {
	root := tree(t, "alpha.txt", "alpine/", "beta.txt")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	got := r.GetResults(context.Background(), "alp", 10)
	assert.Equal(t, []types.RankResult{
		{Path: filepath.Join(root, "alpha.txt"), Source: types.SourceStartLikePath, Score: 1},
		{Path: filepath.Join(root, "alpine"), Source: types.SourceStartLikePath, Score: 1},
	}, got)
}

func TestGetResults_ExactFileKeepsBestScore(t *testing.T) {
	root := tree(t, "docs/readme.md", "docs/readme.md.bak")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	got := r.GetResults(context.Background(), filepath.Join(root, "docs", "readme.md"), 10)
	assert.Equal(t, []types.RankResult{
		{Path: filepath.Join(root, "docs", "readme.md"), Source: types.SourceExactPath, Score: 0},
		{Path: filepath.Join(root, "docs", "readme.md.bak"), Source: types.SourceStartLikePath, Score: 1},
	}, got)
}

func TestGetResults_Truncates(t *testing.T) {
	root := tree(t, "a", "b", "c", "d")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	for _, count := range []int{0, 1, 3, 5, 50} {
		got := r.GetResults(context.Background(), "", count)
		assert.Len(t, got, min(count, 5), "count %d", count)
	}
	assert.Empty(t, r.GetResults(context.Background(), "", -1))
}

func TestGetResults_SkipsBrokenSymlinks(t *testing.T) {
	root := tree(t, "real.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	got := r.GetResults(context.Background(), "", 10)
	for _, res := range got {
		assert.NotEqual(t, filepath.Join(root, "dangling"), res.Path)
	}
	assert.Len(t, got, 2)
}

func TestGetResults_IsIdempotent(t *testing.T) {
	root := tree(t, "x/one", "x/two", "y")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})

	first := r.GetResults(context.Background(), "x", 10)
	second := r.GetResults(context.Background(), "x", 10)
	assert.Equal(t, first, second)
}

func TestGetResults_FirstQuerySkipsSemantic(t *testing.T) {
	root := tree(t, "a.txt")
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	r := newRanker(t, root, idx, emb)

	r.GetResults(context.Background(), "holiday photos", 10)
	assert.Empty(t, emb.texts)
	assert.Empty(t, idx.asked)

	r.GetResults(context.Background(), "holiday photos 2023", 10)
	assert.Equal(t, []string{"holiday photos 2023"}, emb.texts)
	assert.Equal(t, []int{10}, idx.asked)
}

func TestGetResults_SemanticBlendAndFilter(t *testing.T) {
	root := tree(t, "proj/report.txt", "proj/notes.txt", "elsewhere.txt")
	outside := tree(t, "far.txt")
	cwd := filepath.Join(root, "proj")

	idx := &fakeIndex{neighbors: []types.Neighbor{
		{Distance: 0.25, Path: filepath.Join(cwd, "notes.txt")},
		{Distance: 0.5, Path: filepath.Join(cwd, "report.txt")},
		{Distance: 0.75, Path: filepath.Join(cwd, "notes.txt")},
		{Distance: 0.1, Path: filepath.Join(outside, "far.txt")},
		{Distance: 0.2, Path: filepath.Join(cwd, "gone.txt")},
	}}
	r := newRanker(t, cwd, idx, &fakeEmbedder{})

	r.GetResults(context.Background(), "warmup", 10)
	got := r.GetResults(context.Background(), "rep", 10)

	// report.txt is a prefix hit (1) blended to 1-1+0.5; notes.txt is new
	// and under the cwd; far.txt is outside it; gone.txt no longer exists.
	assert.Equal(t, []types.RankResult{
		{Path: filepath.Join(cwd, "report.txt"), Source: types.SourceStartLikePath, Score: 0.5},
		{Path: filepath.Join(cwd, "notes.txt"), Source: types.SourceSemantic, Score: 3.25},
	}, got)
	assert.Equal(t, []int{9}, idx.asked[len(idx.asked)-1:])
}

func TestGetResults_SymlinkedNeighborIsOneEntry(t *testing.T) {
	root := tree(t, "target.txt")
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink("target.txt", link))

	idx := &fakeIndex{neighbors: []types.Neighbor{
		{Distance: 0.1, Path: link},
		{Distance: 0.3, Path: filepath.Join(root, "target.txt")},
	}}
	r := newRanker(t, root, idx, &fakeEmbedder{})

	r.GetResults(context.Background(), "warmup", 10)
	got := r.GetResults(context.Background(), "target", 10)

	// The prefix hit absorbs the closer neighbor stored under the link.
	assert.Equal(t, []types.RankResult{
		{Path: filepath.Join(root, "target.txt"), Source: types.SourceStartLikePath, Score: 0.1},
	}, got)
}

func TestGetResults_BlendNeverWorsens(t *testing.T) {
	root := tree(t, "slow.txt")
	idx := &fakeIndex{neighbors: []types.Neighbor{
		{Distance: 5, Path: filepath.Join(root, "slow.txt")},
	}}
	r := newRanker(t, root, idx, &fakeEmbedder{})

	r.GetResults(context.Background(), "warmup", 10)
	got := r.GetResults(context.Background(), "slow.txt", 10)
	require.NotEmpty(t, got)
	assert.Equal(t, float32(0), got[0].Score)
}

func TestGetResults_SemanticFailuresDegrade(t *testing.T) {
	root := tree(t, "a.txt")
	r := newRanker(t, root, &fakeIndex{err: errors.New("index down")}, &fakeEmbedder{})
	r.GetResults(context.Background(), "warmup", 10)
	got := r.GetResults(context.Background(), "a.txt", 10)
	assert.Len(t, got, 1)

	r = newRanker(t, root, &fakeIndex{}, &fakeEmbedder{err: errors.New("model down")})
	r.GetResults(context.Background(), "warmup", 10)
	got = r.GetResults(context.Background(), "a.txt", 10)
	assert.Len(t, got, 1)
}

func TestGetResults_SemanticSkippedWhenFull(t *testing.T) {
	root := tree(t, "a", "b")
	idx := &fakeIndex{}
	r := newRanker(t, root, idx, &fakeEmbedder{})

	r.GetResults(context.Background(), "warmup", 2)
	r.GetResults(context.Background(), ".", 2)
	assert.Empty(t, idx.asked)
}

func TestGetResults_QueueReplaceAndAppend(t *testing.T) {
	root := tree(t, "a.txt")
	r := newRanker(t, root, &fakeIndex{}, &fakeEmbedder{})
	q := r.Scheduler().Queue()

	r.GetResults(context.Background(), "a.txt", 10)
	n := q.Len()
	require.Positive(t, n)

	r.GetResults(context.Background(), "a.txt", 10)
	assert.Equal(t, 2*n, q.Len(), "unchanged input appends")

	r.GetResults(context.Background(), "./a.txt", 10)
	assert.Equal(t, n, q.Len(), "changed input replaces")
}
