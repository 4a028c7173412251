package saver

import (
	"context"
	"sync"
)

// RunLocks provides per-run mutual exclusion for saves.
// Uses a keyed lock pattern: each run id gets its own lock, so saves of
// different runs proceed concurrently while saves of the same run serialize.
// Entries are dropped once no goroutine holds or waits for them.
type RunLocks struct {
	mu    sync.Mutex // Guards the locks map itself
	locks map[string]*runLock
}

type runLock struct {
	sem  chan struct{}
	refs int // Holders plus waiters
}

// NewRunLocks creates an empty lock set.
func NewRunLocks() *RunLocks {
	return &RunLocks{locks: make(map[string]*runLock)}
}

// Lock acquires the lock of runID, waiting until it is free or ctx is done.
func (r *RunLocks) Lock(ctx context.Context, runID string) error {
	r.mu.Lock()
	l, ok := r.locks[runID]
	if !ok {
		l = &runLock{sem: make(chan struct{}, 1)}
		r.locks[runID] = l
	}
	l.refs++
	r.mu.Unlock()

	// Acquire outside the manager lock to avoid contention
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		r.release(runID, l)
		return ctx.Err()
	}
}

// Unlock releases the lock of runID. Unlocking a run that is not locked is a no-op.
func (r *RunLocks) Unlock(runID string) {
	r.mu.Lock()
	l, ok := r.locks[runID]
	r.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-l.sem:
		r.release(runID, l)
	default:
	}
}

func (r *RunLocks) release(runID string, l *runLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, runID)
	}
}

// Len returns the number of runs currently locked or waited on.
func (r *RunLocks) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
