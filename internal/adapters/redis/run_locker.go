package redis

import (
	"context"
	"sync"
)

// RunLocker guards update runs per instrument across processes
type RunLocker struct {
	factory LockFactory

	mu    sync.Mutex
	locks map[string]Lock
}

// NewRunLocker creates a locker over the given factory
func NewRunLocker(factory LockFactory) *RunLocker {
	return &RunLocker{
		factory: factory,
		locks:   make(map[string]Lock),
	}
}

// TryLock acquires the instrument lease; false means another holder has it
func (r *RunLocker) TryLock(ctx context.Context, instrument string) (bool, error) {
	r.mu.Lock()
	if _, ok := r.locks[instrument]; ok {
		r.mu.Unlock()
		return false, nil
	}
	lock := r.factory.NewInstrumentLock(instrument)
	r.locks[instrument] = lock
	r.mu.Unlock()

	ok, err := lock.TryAcquire(ctx)
	if err != nil || !ok {
		r.mu.Lock()
		delete(r.locks, instrument)
		r.mu.Unlock()
	}
	return ok, err
}

// Unlock releases the instrument lease held by this process
func (r *RunLocker) Unlock(ctx context.Context, instrument string) error {
	r.mu.Lock()
	lock, ok := r.locks[instrument]
	delete(r.locks, instrument)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return lock.Release(ctx)
}
