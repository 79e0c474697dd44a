package ranker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/semlaunch/internal/scheduler"
	"github.com/dshills/semlaunch/pkg/types"
)

// NearestIndex answers semantic lookups. *vectorcache.Cache implements it.
type NearestIndex interface {
	Nearest(ctx context.Context, vector []float32, count int) ([]types.Neighbor, error)
}

// QueryEmbedder embeds the live query ahead of background work.
// *embedder.Gate implements it.
type QueryEmbedder interface {
	EmbedPriority(ctx context.Context, texts []string) ([][]float32, error)
}

// Ranker merges exact, prefix, directory and semantic matches into one
// ordered result list and feeds the background scheduler.
type Ranker struct {
	sched    *scheduler.Scheduler
	queue    *scheduler.Queue
	index    NearestIndex
	embedder QueryEmbedder
	policy   Policy
	cwd      string
	logger   *slog.Logger

	startOnce sync.Once
	stopped   chan struct{}

	mu        sync.Mutex
	queried   bool
	lastInput string
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithPolicy overrides the scoring constants.
func WithPolicy(p Policy) Option {
	return func(r *Ranker) { r.policy = p }
}

// WithWorkingDir sets the directory relative inputs resolve against and
// semantic-only results must lie under.
func WithWorkingDir(dir string) Option {
	return func(r *Ranker) { r.cwd = dir }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a ranker. The working directory defaults to the process's.
func New(sched *scheduler.Scheduler, index NearestIndex, emb QueryEmbedder, opts ...Option) (*Ranker, error) {
	r := &Ranker{
		sched:    sched,
		queue:    sched.Queue(),
		index:    index,
		embedder: emb,
		policy:   DefaultPolicy(),
		logger:   slog.Default(),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		r.cwd = wd
	}
	cwd, err := canonical("/", r.cwd)
	if err != nil {
		return nil, err
	}
	r.cwd = cwd
	return r, nil
}

// Init starts the background scheduler. Later calls do nothing. The
// scheduler stops when ctx is cancelled; Stopped is closed once its running
// tasks have finished.
func (r *Ranker) Init(ctx context.Context) {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.stopped)
			if err := r.sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("scheduler stopped", "error", err)
			}
		}()
	})
}

// Stopped is closed when the scheduler started by Init has returned. It
// never closes if Init was not called.
func (r *Ranker) Stopped() <-chan struct{} { return r.stopped }

// WorkingDir returns the canonical working directory.
func (r *Ranker) WorkingDir() string { return r.cwd }

// Scheduler returns the background scheduler.
func (r *Ranker) Scheduler() *scheduler.Scheduler { return r.sched }

// GetResults returns at most count results for input, ordered by score then
// path. Filesystem and embedding failures only shrink the result set.
//
// As a side effect it queues background tasks for the results. A changed
// input replaces the pending queue; a repeated one appends to it.
func (r *Ranker) GetResults(ctx context.Context, input string, count int) []types.RankResult {
	if count < 0 {
		count = 0
	}
	input = strings.TrimSpace(input)
	target := input
	if target == "" {
		target = "."
	}

	r.mu.Lock()
	first := !r.queried
	changed := first || input != r.lastInput
	r.queried = true
	r.lastInput = input
	r.mu.Unlock()

	m := make(merger)
	r.addStructural(m, target)

	if !first && input != "" {
		r.addSemantic(ctx, m, input, count-len(m))
	}

	results := m.sorted()
	if len(results) > count {
		results = results[:count]
	}

	tasks, err := r.generateTasks(results)
	if err != nil {
		r.logger.Warn("task generation stopped", "input", input, "error", err)
	}
	if changed {
		r.queue.Replace(tasks)
	} else {
		r.queue.Push(tasks...)
	}

	r.logger.Debug("ranked",
		"input", input,
		"results", len(results),
		"tasks", len(tasks),
		"replaced", changed)
	return results
}

// addStructural runs the exact, directory-children and prefix stages.
func (r *Ranker) addStructural(m merger, target string) {
	p := r.policy
	literal := target
	if !filepath.IsAbs(literal) {
		literal = filepath.Join(r.cwd, literal)
	}

	if path, err := canonical(r.cwd, target); err == nil {
		m.offer(path, types.SourceExactPath, p.ExactScore)
	} else if !isTransient(err) {
		r.logger.Debug("exact match failed", "input", target, "error", err)
	}

	dir, err := isRealDir(literal)
	if err != nil && !isTransient(err) {
		r.logger.Debug("stat failed", "input", target, "error", err)
	}
	if dir {
		r.addChildren(m, literal)
		return
	}

	parent, base := filepath.Dir(literal), filepath.Base(literal)
	if base == "" || base == string(filepath.Separator) {
		return
	}
	entries, err := os.ReadDir(parent)
	if err != nil {
		if !isTransient(err) {
			r.logger.Debug("prefix listing failed", "dir", parent, "error", err)
		}
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), base) {
			continue
		}
		path, err := canonical(r.cwd, filepath.Join(parent, e.Name()))
		if err != nil {
			continue
		}
		m.offer(path, types.SourceStartLikePath, p.PrefixScore)
	}
}

func (r *Ranker) addChildren(m merger, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !isTransient(err) {
			r.logger.Debug("directory listing failed", "dir", dir, "error", err)
		}
		return
	}
	for _, e := range entries {
		path, err := canonical(r.cwd, filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		m.offer(path, types.SourceInDir, r.policy.ChildScore)
	}
}

// addSemantic blends nearest-neighbour hits for the whole input into m.
func (r *Ranker) addSemantic(ctx context.Context, m merger, input string, want int) {
	if want <= 0 {
		return
	}

	vectors, err := r.embedder.EmbedPriority(ctx, []string{input})
	if err != nil || len(vectors) != 1 {
		r.logger.Debug("query embedding failed", "input", input, "error", err)
		return
	}
	neighbors, err := r.index.Nearest(ctx, vectors[0], want)
	if err != nil {
		r.logger.Debug("nearest lookup failed", "input", input, "error", err)
		return
	}

	p := r.policy
	seen := make(map[string]bool, len(neighbors))
	for _, nb := range neighbors {
		// Stored paths may predate a rename or a new symlink; the merger is
		// keyed by what they resolve to now. Vanished paths drop out here.
		path, err := canonical(r.cwd, nb.Path)
		if err != nil {
			continue
		}
		// Neighbors arrive closest first; later vectors of the same path add nothing.
		if seen[path] {
			continue
		}
		seen[path] = true

		if cur, ok := m[path]; ok {
			if cur.Score < p.SemanticBase {
				m.improve(path, cur.Score+p.SemanticBlend+nb.Distance)
			} else {
				m.improve(path, p.SemanticBase+nb.Distance)
			}
			continue
		}

		if !under(r.cwd, path) {
			continue
		}
		m.offer(path, types.SourceSemantic, p.SemanticBase+nb.Distance)
	}
}

// merger keys results by canonical path. Scores only ever go down.
type merger map[string]*types.RankResult

func (m merger) offer(path string, source types.Source, score float32) {
	if cur, ok := m[path]; ok {
		if score < cur.Score {
			cur.Score = score
			cur.Source = source
		}
		return
	}
	m[path] = &types.RankResult{Path: path, Source: source, Score: score}
}

// improve lowers an existing score without changing its source.
func (m merger) improve(path string, score float32) {
	if cur, ok := m[path]; ok && score < cur.Score {
		cur.Score = score
	}
}

func (m merger) sorted() []types.RankResult {
	out := make([]types.RankResult, 0, len(m))
	for _, res := range m {
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out
}
