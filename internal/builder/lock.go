package builder

import (
	"fmt"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// runLock is a non-blocking in-process lock guarding one build at a time.
type runLock struct {
	state atomic.Int32 // 0 = idle, 1 = building
}

func (l *runLock) tryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

func (l *runLock) release() {
	l.state.Store(0)
}

func (l *runLock) held() bool {
	return l.state.Load() == 1
}

// lockIndexFile takes an exclusive lock next to indexPath so two processes
// never write the same index. The returned func releases it.
func lockIndexFile(indexPath string) (func(), error) {
	l := flock.New(indexPath + ".lock")
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", indexPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is locked by another process", ErrBuildInProgress, indexPath)
	}
	return func() { _ = l.Unlock() }, nil
}
