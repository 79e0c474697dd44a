package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/semlaunch/internal/scheduler"
	"github.com/dshills/semlaunch/pkg/types"
)

// DefaultPriority is the priority of tasks queued for changed entries.
const DefaultPriority float32 = 1

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Priority float32 // zero means DefaultPriority
	Logger   *slog.Logger
}

// Watcher turns filesystem changes under a root into Name tasks. Tasks are
// appended to the queue; a query's Replace still discards them.
type Watcher struct {
	root      string
	queue     *scheduler.Queue
	priority  float32
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
	debouncer *Debouncer

	closeOnce sync.Once
	closed    chan struct{}
}

// New watches root and every non-hidden directory below it.
func New(root string, queue *scheduler.Queue, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     abs,
		queue:    queue,
		priority: opts.Priority,
		logger:   opts.Logger,
		fsw:      fsw,
		closed:   make(chan struct{}),
	}
	if w.priority == 0 {
		w.priority = DefaultPriority
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.debouncer = NewDebouncer(opts.Debounce, w.enqueue)

	if err := w.addDirRecursive(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run forwards events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	w.debouncer.Stop()
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if hidden(w.root, ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirRecursive(ev.Name); err != nil {
				w.logger.Debug("watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	w.debouncer.Push(ev.Name)
}

// enqueue appends one Name task per canonical path that still resolves. A
// symlink is queued as its target.
func (w *Watcher) enqueue(paths []string) {
	tasks := make([]scheduler.Task, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		canon, err := filepath.EvalSymlinks(p)
		if err != nil || seen[canon] {
			continue
		}
		seen[canon] = true
		tasks = append(tasks, scheduler.NewTask(canon, types.StateName(), w.priority))
	}
	w.queue.Push(tasks...)
	w.logger.Debug("queued changed entries", "count", len(tasks))
}

func (w *Watcher) addDirRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != dir && (errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist)) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && hidden(w.root, p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// hidden reports whether any element of p below root starts with a dot.
func hidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
