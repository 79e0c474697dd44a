package watcher

import (
	"sort"
	"sync"
	"time"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before queueing tasks.
const DefaultDebounce = 200 * time.Millisecond

// Debouncer collects paths and fires once no new path has arrived for delay.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	queued map[string]struct{}
	onFire func(paths []string)
}

// NewDebouncer creates a debouncer calling onFire with the sorted, distinct
// paths of each burst.
func NewDebouncer(delay time.Duration, onFire func(paths []string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		delay:  delay,
		queued: map[string]struct{}{},
		onFire: onFire,
	}
}

// Push adds path to the current burst and restarts the timer.
func (d *Debouncer) Push(path string) {
	if path == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Stop cancels a pending fire. Queued paths are dropped.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.queued = map[string]struct{}{}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	queued := d.queued
	d.queued = map[string]struct{}{}
	d.mu.Unlock()

	if d.onFire == nil || len(queued) == 0 {
		return
	}
	paths := make([]string, 0, len(queued))
	for p := range queued {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	d.onFire(paths)
}
