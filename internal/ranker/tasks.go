package ranker

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/dshills/semlaunch/internal/scheduler"
	"github.com/dshills/semlaunch/pkg/types"
)

type walkNode struct {
	path  string
	score float32
	// link is set when path was reached through a symlink. Its target is
	// embedded but never descended into.
	link bool
}

// generateTasks walks outward from each result and returns the background
// tasks that would enrich later semantic queries. The walk is breadth first
// so entries closest to a result claim the task budget first. Every task
// carries a canonical path; symlinked children are resolved to their targets.
//
// Transient filesystem errors skip the entry. Any other error stops the walk
// and is returned along with the tasks gathered so far.
func (r *Ranker) generateTasks(results []types.RankResult) ([]scheduler.Task, error) {
	p := r.policy
	tasks := make([]scheduler.Task, 0, min(p.MaxTasks, 16))
	full := func() bool { return len(tasks) >= p.MaxTasks }
	revisit := false
	add := func(t scheduler.Task) {
		if revisit {
			// Reached again closer to a result: the new task supersedes weaker ones.
			tasks = dropWeaker(tasks, t.Item)
		}
		if !full() {
			tasks = append(tasks, t)
		}
	}

	best := make(map[string]float32)
	// linkOnly marks paths so far reached only through a symlink; a direct
	// visit at the same score may still descend into them.
	linkOnly := make(map[string]bool)
	work := make([]walkNode, 0, len(results))
	for _, res := range results {
		work = append(work, walkNode{path: res.Path, score: res.Score})
	}

	for len(work) > 0 && !full() {
		n := work[0]
		work = work[1:]

		prev, seen := best[n.path]
		if seen && (prev < n.score || (prev == n.score && (n.link || !linkOnly[n.path]))) {
			continue
		}
		best[n.path] = n.score
		linkOnly[n.path] = n.link && (!seen || linkOnly[n.path])
		revisit = seen

		if n.score < p.NameScoreLimit {
			add(scheduler.NewTask(n.path, types.StateName(), n.score))
		}

		dir, err := isRealDir(n.path)
		if err != nil {
			if isTransient(err) {
				continue
			}
			return tasks, err
		}

		if !dir {
			if n.score > 0 && n.score < p.ParagraphsScoreLimit {
				groups := int(math.Round(float64(p.ParagraphsBudget / n.score)))
				add(scheduler.NewTask(n.path, types.StateParagraphs(groups), n.score+p.ParagraphsPriorityShift))
			}
			continue
		}

		// Children this deep would emit no tasks.
		if n.link || (n.score+1 >= p.NameScoreLimit && n.score+1 >= p.ParagraphsScoreLimit) {
			continue
		}

		entries, err := os.ReadDir(n.path)
		if err != nil {
			if isTransient(err) {
				continue
			}
			return tasks, err
		}
		for _, e := range entries {
			child := walkNode{path: filepath.Join(n.path, e.Name()), score: n.score + 1}
			if e.Type()&fs.ModeSymlink != 0 {
				target, err := filepath.EvalSymlinks(child.path)
				if err != nil {
					// Dangling and looping links have no canonical path.
					continue
				}
				child.path, child.link = target, true
			}
			work = append(work, child)
		}
	}
	return tasks, nil
}

// dropWeaker removes the tasks for item.Path whose state item.State already
// satisfies.
func dropWeaker(tasks []scheduler.Task, item types.CacheItem) []scheduler.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.Item.Path != item.Path || !item.State.Satisfies(t.Item.State) {
			out = append(out, t)
		}
	}
	return out
}
