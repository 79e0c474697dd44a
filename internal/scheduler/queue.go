package scheduler

import (
	"container/heap"
	"sync"

	"github.com/dshills/semlaunch/pkg/types"
)

// Task asks the scheduler to embed Item. Lower Priority runs first.
type Task struct {
	Item     types.CacheItem
	Priority float32
}

// NewTask builds a task for path at state.
func NewTask(path string, state types.EmbeddingState, priority float32) Task {
	return Task{Item: types.CacheItem{Path: path, State: state}, Priority: priority}
}

type entry struct {
	task Task
	seq  uint64
}

// taskHeap is a min-heap on priority. Equal priorities pop in insertion order.
type taskHeap []entry

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Queue is the pending task set shared by the ranker (producer) and the
// scheduler loop (consumer). The lock is held only for the queue operation
// itself.
type Queue struct {
	mu   sync.Mutex
	h    taskHeap
	seq  uint64
	wake chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push adds tasks to whatever is already pending.
func (q *Queue) Push(tasks ...Task) {
	if len(tasks) == 0 {
		return
	}
	q.mu.Lock()
	for _, t := range tasks {
		q.seq++
		heap.Push(&q.h, entry{task: t, seq: q.seq})
	}
	q.mu.Unlock()
	q.signal()
}

// Replace discards every pending task and installs tasks instead. Tasks
// already handed to a worker are not affected.
func (q *Queue) Replace(tasks []Task) {
	h := make(taskHeap, 0, len(tasks))
	q.mu.Lock()
	for _, t := range tasks {
		q.seq++
		h = append(h, entry{task: t, seq: q.seq})
	}
	heap.Init(&h)
	q.h = h
	q.mu.Unlock()
	q.signal()
}

// Pop removes and returns the lowest priority task.
func (q *Queue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return Task{}, false
	}
	return heap.Pop(&q.h).(entry).task, true
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Snapshot returns the pending tasks in pop order without removing them.
func (q *Queue) Snapshot() []Task {
	q.mu.Lock()
	cp := make(taskHeap, len(q.h))
	copy(cp, q.h)
	q.mu.Unlock()

	out := make([]Task, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(entry).task)
	}
	return out
}

// Ready is signalled after tasks are added. It may fire spuriously.
func (q *Queue) Ready() <-chan struct{} {
	return q.wake
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
