package indexer

import (
	"errors"
	"sync/atomic"
)

// ErrBuildInProgress is returned by callers that reject a build while another
// one is running in the same process
var ErrBuildInProgress = errors.New("an index build is already in progress")

// BuildLock serializes builds within one process without blocking.
// It does not coordinate separate processes sharing a project root.
type BuildLock struct {
	state atomic.Int32 // 0 = idle, 1 = building
}

// TryAcquire claims the lock, reporting false if a build already holds it
func (l *BuildLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *BuildLock) Release() {
	l.state.Store(0)
}

// Guard runs fn while holding the lock, or returns ErrBuildInProgress
func (l *BuildLock) Guard(fn func() error) error {
	if !l.TryAcquire() {
		return ErrBuildInProgress
	}
	defer l.Release()
	return fn()
}
