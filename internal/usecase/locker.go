package usecase

import (
	"context"
	"sync"
)

// LocalLocker is an in-process RunLocker. It is enough for a single replica;
// multi-replica deployments use the Redis locker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*runLock
}

type runLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a new LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*runLock)}
}

// Lock implements RunLocker.
func (l *LocalLocker) Lock(ctx context.Context, runID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[runID]
	if !ok {
		lk = &runLock{ch: make(chan struct{}, 1)}
		l.locks[runID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(runID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(runID, lk)
		})
	}, nil
}

func (l *LocalLocker) release(runID string, lk *runLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, runID)
	}
}
