package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/semlaunch/internal/storage"
	"github.com/dshills/semlaunch/internal/vectorcache"
	"github.com/dshills/semlaunch/pkg/types"
)

var (
	// ErrBuildInProgress is returned when another build holds the lock.
	ErrBuildInProgress = errors.New("indexing in progress")
)

// PromptSource derives the texts to embed for an item.
type PromptSource interface {
	Prompts(ctx context.Context, item types.CacheItem) ([]string, error)
}

// BatchEmbedder embeds prompts on the background path.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ForestSink receives each forest once it is saved. *vectorcache.Cache
// implements it, so a running process serves the new index immediately.
type ForestSink interface {
	UseApproximate(f *vectorcache.Forest) error
}

// Option configures a Builder.
type Option func(*Builder)

// WithForestSink publishes every saved forest to sink.
func WithForestSink(sink ForestSink) Option {
	return func(b *Builder) { b.sink = sink }
}

// Config controls a build.
type Config struct {
	IndexPath string               // forest file to write (required)
	Level     types.EmbeddingState // Name or Paragraphs(n); None means Name
	Trees     int                  // default vectorcache.DefaultTrees
	Seed      uint64               // default vectorcache.DefaultSeed
	Workers   int                  // default runtime.NumCPU()
	ScanAll   bool                 // include hidden and gitignored entries
}

// Statistics describes a finished build.
type Statistics struct {
	Entries       int           `json:"entries"`
	Embedded      int           `json:"embedded"`
	Embeddings    int           `json:"embeddings"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Trees         int           `json:"trees"`
	Duration      time.Duration `json:"duration"`
	ErrorMessages []string      `json:"error_messages,omitempty"`
}

// Builder produces the approximate index: crawl -> prompts -> embed -> forest.
type Builder struct {
	store    storage.Store
	prompts  PromptSource
	embedder BatchEmbedder
	dim      int
	logger   *slog.Logger
	sink     ForestSink

	running runLock
}

// New creates a builder writing store rows through store and vectors of
// dimension dim.
func New(store storage.Store, prompts PromptSource, embedder BatchEmbedder, dim int, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		store:    store,
		prompts:  prompts,
		embedder: embedder,
		dim:      dim,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Running reports whether a build is underway in this process.
func (b *Builder) Running() bool {
	return b.running.held()
}

// Build indexes root and writes the forest to cfg.IndexPath. Only one build
// runs at a time; a concurrent call gets ErrBuildInProgress.
func (b *Builder) Build(ctx context.Context, root string, cfg Config) (*Statistics, error) {
	if cfg.IndexPath == "" {
		return nil, fmt.Errorf("index path is required")
	}
	if cfg.Level.Kind == types.KindNone {
		cfg.Level = types.StateName()
	}
	if cfg.Trees <= 0 {
		cfg.Trees = vectorcache.DefaultTrees
	}
	if cfg.Seed == 0 {
		cfg.Seed = vectorcache.DefaultSeed
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	if !b.running.tryAcquire() {
		return nil, ErrBuildInProgress
	}
	defer b.running.release()

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.IndexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	unlock, err := lockIndexFile(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	entries, err := crawl(root, cfg.ScanAll)
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", root, err)
	}
	b.logger.Info("crawled", "root", root, "entries", len(entries))

	stats := &Statistics{Entries: len(entries), Trees: cfg.Trees}
	forest := vectorcache.NewForestBuilder(b.dim)
	if err := b.embedAll(ctx, entries, cfg, forest, stats); err != nil {
		return nil, err
	}

	if forest.Len() == 0 {
		return nil, fmt.Errorf("no embeddings produced under %s", root)
	}
	f := forest.Build(cfg.Trees, cfg.Seed)
	if err := vectorcache.SaveForest(cfg.IndexPath, f); err != nil {
		return nil, err
	}
	// Built rows already satisfy later tasks, so their vectors must be served now.
	if b.sink != nil {
		if err := b.sink.UseApproximate(f); err != nil {
			return nil, fmt.Errorf("serve new index: %w", err)
		}
	}

	stats.Duration = time.Since(start)
	b.logger.Info("index built",
		"root", root,
		"index", cfg.IndexPath,
		"entries", stats.Entries,
		"embeddings", stats.Embeddings,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, nil
}

func (b *Builder) embedAll(ctx context.Context, entries []entry, cfg Config, forest *vectorcache.ForestBuilder, stats *Statistics) error {
	var (
		embedded   atomic.Int32
		embeddings atomic.Int32
		skipped    atomic.Int32
		failed     atomic.Int32

		forestMu sync.Mutex
		errMu    sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, e := range entries {
		g.Go(func() error {
			n, err := b.embedEntry(gctx, e, cfg.Level, func(id types.ID, vecs [][]float32) error {
				forestMu.Lock()
				defer forestMu.Unlock()
				for _, v := range vecs {
					if err := forest.Add(id, v); err != nil {
						return err
					}
				}
				return nil
			})
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err
			case errors.Is(err, vectorcache.ErrDimension):
				return err
			case err != nil:
				failed.Add(1)
				errMu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", e.path, err))
				errMu.Unlock()
				b.logger.Debug("entry failed", "path", e.path, "error", err)
			case n == 0:
				skipped.Add(1)
			default:
				embedded.Add(1)
				embeddings.Add(int32(n))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.Embedded = int(embedded.Load())
	stats.Embeddings = int(embeddings.Load())
	stats.Skipped = int(skipped.Load())
	stats.Failed = int(failed.Load())
	return nil
}

// embedEntry stores e at the build level and embeds its prompts. Every entry
// gets name prompts; files also get paragraph prompts at a Paragraphs level.
// It returns the number of vectors produced.
func (b *Builder) embedEntry(ctx context.Context, e entry, level types.EmbeddingState, add func(types.ID, [][]float32) error) (int, error) {
	prompts, err := b.prompts.Prompts(ctx, types.CacheItem{Path: e.path, State: types.StateName()})
	if err != nil {
		return 0, err
	}

	state := types.StateName()
	if level.Kind == types.KindParagraphs && !e.dir {
		more, err := b.prompts.Prompts(ctx, types.CacheItem{Path: e.path, State: level})
		switch {
		case err != nil:
			b.logger.Debug("no content prompts", "path", e.path, "error", err)
		case len(more) > 0:
			prompts = append(prompts, more...)
			state = level
		}
	}
	if len(prompts) == 0 {
		return 0, nil
	}

	id, err := b.store.InsertOrUpdate(ctx, e.path, state)
	if err != nil {
		return 0, err
	}
	vecs, err := b.embedder.Embed(ctx, prompts)
	if err != nil {
		return 0, err
	}
	if err := add(id, vecs); err != nil {
		return 0, err
	}
	return len(vecs), nil
}
