package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/semlaunch/pkg/types"
)

// DefaultMaxInFlight bounds how many popped tasks may run at once. Tasks
// beyond that stay in the queue, where a later Replace can still drop them.
const DefaultMaxInFlight = 4

// Index is the part of the vector cache the scheduler writes to.
type Index interface {
	Contains(ctx context.Context, item types.CacheItem) (bool, error)
	Record(ctx context.Context, item types.CacheItem) (types.ID, error)
	AddEmbedToID(vector []float32, id types.ID) error
}

// PromptSource derives the texts to embed for an item.
type PromptSource interface {
	Prompts(ctx context.Context, item types.CacheItem) ([]string, error)
}

// BatchEmbedder embeds prompts on the background (queued) path.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Stats counts task outcomes since the scheduler was created.
type Stats struct {
	Pending   int   `json:"pending"`
	InFlight  int64 `json:"in_flight"`
	Embedded  int64 `json:"embedded"`
	Skipped   int64 `json:"skipped"`
	NoPrompts int64 `json:"no_prompts"`
	Failed    int64 `json:"failed"`
}

// Scheduler drains a Queue in priority order and executes each task on its
// own goroutine.
type Scheduler struct {
	queue    *Queue
	index    Index
	prompts  PromptSource
	embedder BatchEmbedder
	logger   *slog.Logger

	maxInFlight int

	inFlight  atomic.Int64
	embedded  atomic.Int64
	skipped   atomic.Int64
	noPrompts atomic.Int64
	failed    atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxInFlight sets how many tasks may execute concurrently.
func WithMaxInFlight(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// New creates a scheduler. Call Run to start draining the queue.
func New(queue *Queue, index Index, prompts PromptSource, embedder BatchEmbedder, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:       queue,
		index:       index,
		prompts:     prompts,
		embedder:    embedder,
		logger:      slog.Default(),
		maxInFlight: DefaultMaxInFlight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Queue returns the queue the scheduler drains.
func (s *Scheduler) Queue() *Queue { return s.queue }

// Run pops tasks until ctx is cancelled, then waits for running tasks to
// finish. Running tasks are never interrupted; they use a context detached
// from ctx's cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	var g errgroup.Group
	slots := make(chan struct{}, s.maxInFlight)
	taskCtx := context.WithoutCancel(ctx)

	defer func() { _ = g.Wait() }()

	for {
		// Take a slot before popping so pending work stays replaceable.
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		task, ok := s.queue.Pop()
		if !ok {
			<-slots
			select {
			case <-s.queue.Ready():
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		s.inFlight.Add(1)
		g.Go(func() error {
			defer func() {
				s.inFlight.Add(-1)
				<-slots
			}()
			if err := s.ExecuteTask(taskCtx, task); err != nil {
				s.failed.Add(1)
				s.logger.Debug("embedding task failed",
					"path", task.Item.Path,
					"state", task.Item.State.String(),
					"priority", task.Priority,
					"error", err)
			}
			return nil
		})
	}
}

// ExecuteTask runs one task:
//
//  1. skip if the store already holds the path at this state or richer
//  2. derive prompts; with none, record nothing
//  3. record the new state, then embed and add every vector under the path's id
//
// State is recorded before the embedding call so concurrent tasks for the
// same path agree on one id.
func (s *Scheduler) ExecuteTask(ctx context.Context, task Task) error {
	item := task.Item

	done, err := s.index.Contains(ctx, item)
	if err != nil {
		return fmt.Errorf("check %s: %w", item.Path, err)
	}
	if done {
		s.skipped.Add(1)
		return nil
	}

	prompts, err := s.prompts.Prompts(ctx, item)
	if err != nil {
		return fmt.Errorf("prompts for %s: %w", item.Path, err)
	}
	if len(prompts) == 0 {
		s.noPrompts.Add(1)
		return nil
	}

	id, err := s.index.Record(ctx, item)
	if err != nil {
		return fmt.Errorf("record %s: %w", item.Path, err)
	}

	vectors, err := s.embedder.Embed(ctx, prompts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", item.Path, err)
	}

	for _, v := range vectors {
		if err := s.index.AddEmbedToID(v, id); err != nil {
			return fmt.Errorf("index %s: %w", item.Path, err)
		}
	}

	s.embedded.Add(1)
	s.logger.Debug("embedded",
		"path", item.Path,
		"state", item.State.String(),
		"prompts", len(prompts))
	return nil
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Pending:   s.queue.Len(),
		InFlight:  s.inFlight.Load(),
		Embedded:  s.embedded.Load(),
		Skipped:   s.skipped.Load(),
		NoPrompts: s.noPrompts.Load(),
		Failed:    s.failed.Load(),
	}
}
