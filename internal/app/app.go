package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dshills/semlaunch/internal/builder"
	"github.com/dshills/semlaunch/internal/config"
	"github.com/dshills/semlaunch/internal/embedder"
	"github.com/dshills/semlaunch/internal/prompt"
	"github.com/dshills/semlaunch/internal/ranker"
	"github.com/dshills/semlaunch/internal/scheduler"
	"github.com/dshills/semlaunch/internal/storage"
	"github.com/dshills/semlaunch/internal/vectorcache"
	"github.com/dshills/semlaunch/internal/watcher"
)

// App owns every long-lived component. Each is built once here and shared
// by reference.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Session   string
	Store     *storage.SQLiteStorage
	Embedder  embedder.Embedder
	Gate      *embedder.Gate
	Cache     *vectorcache.Cache
	Scheduler *scheduler.Scheduler
	Ranker    *ranker.Ranker
	Builder   *builder.Builder

	watcher *watcher.Watcher
	stop    context.CancelFunc
}

// New wires the components described by cfg. cwd is the directory queries
// resolve against; empty means the process's working directory.
func New(cfg *config.Config, cwd string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session := uuid.NewString()
	logger = logger.With("session", session)

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.Embedder())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if emb.Dimension() != embedder.Dimension {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %s produces %d dimensions", embedder.ErrDimensionMismatch, emb.Provider(), emb.Dimension())
	}
	gate := embedder.NewGate(emb)

	cache, err := vectorcache.Open(store, embedder.Dimension, cfg.IndexPath, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	extractor := prompt.New()
	sched := scheduler.New(scheduler.NewQueue(), cache, extractor, gate,
		scheduler.WithLogger(logger),
		scheduler.WithMaxInFlight(cfg.MaxInFlight))

	rk, err := ranker.New(sched, cache, gate,
		ranker.WithWorkingDir(cwd),
		ranker.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bld := builder.New(store, extractor, gate, embedder.Dimension, logger,
		builder.WithForestSink(cache))

	logger.Info("initialized",
		"db", cfg.DBPath,
		"provider", emb.Provider(),
		"model", emb.Model(),
		"cwd", rk.WorkingDir())

	return &App{
		Config:    cfg,
		Logger:    logger,
		Session:   session,
		Store:     store,
		Embedder:  emb,
		Gate:      gate,
		Cache:     cache,
		Scheduler: sched,
		Ranker:    rk,
		Builder:   bld,
	}, nil
}

// Start launches the scheduler and, when configured, the filesystem
// watcher. Both stop when ctx is cancelled or Close is called. Later calls
// do nothing.
func (a *App) Start(ctx context.Context) error {
	if a.stop != nil {
		return nil
	}
	ctx, a.stop = context.WithCancel(ctx)
	a.Ranker.Init(ctx)
	if !a.Config.Watch {
		return nil
	}

	w, err := watcher.New(a.Ranker.WorkingDir(), a.Scheduler.Queue(), watcher.Options{
		Debounce: a.Config.Debounce,
		Logger:   a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	a.watcher = w
	go func() {
		if err := w.Run(ctx); err != nil {
			a.Logger.Warn("watcher stopped", "error", err)
		}
	}()
	return nil
}

// BuildConfig returns the builder settings from the configuration.
func (a *App) BuildConfig() (builder.Config, error) {
	level, err := a.Config.BuildState()
	if err != nil {
		return builder.Config{}, err
	}
	return builder.Config{
		IndexPath: a.Config.IndexPath,
		Level:     level,
		Trees:     a.Config.BuildTrees,
		Seed:      a.Config.BuildSeed,
		Workers:   a.Config.BuildWorkers,
	}, nil
}

// Close stops the watcher and the scheduler, waits for embedding tasks
// already running, then releases the embedder and the store.
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
	}
	if a.stop != nil {
		a.stop()
		<-a.Ranker.Stopped()
	}
	errs = append(errs, a.Embedder.Close(), a.Store.Close())
	return errors.Join(errs...)
}
