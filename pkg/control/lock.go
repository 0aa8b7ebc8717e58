package control

import (
	"context"
	"sync"
	"time"

	"github.com/codeb-dev/codeb/pkg/types"
)

// KeyedLock serializes mutations per (project, environment) key.
// Acquisition waits up to a bounded timeout; expiry surfaces as busy so
// callers can retry instead of queueing forever behind a stuck deploy.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewKeyedLock returns an empty lock table.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]chan struct{})}
}

func (l *KeyedLock) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Acquire takes the key's lock, waiting at most timeout. The returned
// release function must be called exactly once.
func (l *KeyedLock) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	ch := l.slot(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, types.E(types.KindBusy, "operation already in progress for %s (waited %s)", key, timeout)
	case <-ctx.Done():
		return nil, types.Wrap(types.KindBusy, ctx.Err(), "lock wait cancelled for %s", key)
	}
}

// TryAcquire takes the lock only if it is immediately free.
func (l *KeyedLock) TryAcquire(key string) (func(), bool) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}
