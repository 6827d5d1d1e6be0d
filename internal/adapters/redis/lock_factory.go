package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/pkg/logger"
)

// Lock is an exclusive lease on one instrument
type Lock interface {
	// TryAcquire returns false when another holder owns the lease
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Name() string
}

// LockFactory creates instrument locks
type LockFactory interface {
	NewInstrumentLock(instrument string) Lock
}

// RedlockFactory creates Redis-based distributed locks
type RedlockFactory struct {
	lockManager *redlock.RedLock
	ttl         time.Duration
}

// NewRedlockFactory creates new Redis lock factory
func NewRedlockFactory(lockManager *redlock.RedLock, ttl time.Duration) *RedlockFactory {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedlockFactory{lockManager: lockManager, ttl: ttl}
}

// NewInstrumentLock creates a distributed lock for a specific instrument
func (f *RedlockFactory) NewInstrumentLock(instrument string) Lock {
	return &instrumentLock{
		lockManager: f.lockManager,
		name:        fmt.Sprintf("fusion:update:%s", instrument),
		ttl:         f.ttl,
	}
}

// instrumentLock holds the lease and renews it until released
type instrumentLock struct {
	lockManager *redlock.RedLock
	name        string
	ttl         time.Duration

	mu          sync.Mutex
	locked      bool
	stopRenewal context.CancelFunc
}

func (l *instrumentLock) Name() string {
	return l.name
}

func (l *instrumentLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := l.lockManager.Lock(ctx, l.name, l.ttl)
	if err != nil {
		logger.Debug("instrument lock already held by another process", zap.String("lock_name", l.name))
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	renewCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.locked = true
	l.stopRenewal = cancel
	l.mu.Unlock()

	logger.Debug("instrument lock acquired",
		zap.String("lock_name", l.name),
		zap.Duration("ttl", l.ttl),
	)

	go l.renew(renewCtx)

	return true, nil
}

func (l *instrumentLock) Release(ctx context.Context) error {
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		return nil
	}
	l.locked = false
	l.stopRenewal()
	l.mu.Unlock()

	// the lease may have expired already, which is fine
	if err := l.lockManager.UnLock(ctx, l.name); err != nil {
		logger.Warn("failed to release instrument lock",
			zap.String("lock_name", l.name),
			zap.Error(err),
		)
	}
	return nil
}

// renew extends the lease at 2/3 of its TTL by re-locking
func (l *instrumentLock) renew(ctx context.Context) {
	ticker := time.NewTicker((l.ttl * 2) / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.lockManager.UnLock(ctx, l.name); err != nil {
				logger.Error("instrument lock renewal failed", zap.String("lock_name", l.name), zap.Error(err))
				return
			}
			expiry, err := l.lockManager.Lock(ctx, l.name, l.ttl)
			if err != nil || expiry <= 0 {
				logger.Error("instrument lock lost during renewal",
					zap.String("lock_name", l.name),
					zap.Error(err),
				)
				return
			}
		}
	}
}

// MemoryLockFactory hands out process-local locks; used in tests and
// single-instance deployments without Redis
type MemoryLockFactory struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLockFactory creates an in-memory lock factory
func NewMemoryLockFactory() *MemoryLockFactory {
	return &MemoryLockFactory{held: make(map[string]bool)}
}

// NewInstrumentLock creates a lock sharing this factory's state
func (f *MemoryLockFactory) NewInstrumentLock(instrument string) Lock {
	return &memoryLock{factory: f, name: instrument}
}

type memoryLock struct {
	factory *MemoryLockFactory
	name    string
}

func (l *memoryLock) Name() string {
	return l.name
}

func (l *memoryLock) TryAcquire(ctx context.Context) (bool, error) {
	l.factory.mu.Lock()
	defer l.factory.mu.Unlock()
	if l.factory.held[l.name] {
		return false, nil
	}
	l.factory.held[l.name] = true
	return true, nil
}

func (l *memoryLock) Release(ctx context.Context) error {
	l.factory.mu.Lock()
	defer l.factory.mu.Unlock()
	delete(l.factory.held, l.name)
	return nil
}
