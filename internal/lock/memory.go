package lock

import (
	"context"
	"sync"
	"time"
)

const memoryRetryInterval = 5 * time.Millisecond

// MemoryLocker is an in-process Locker for single-instance deployments and
// tests. It honors the same acquisition timeout and TTL semantics as the
// Redis implementation.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	if err := l.acquire(ctx, key, opts.AcquireTimeout); err != nil {
		return err
	}

	release := sync.OnceFunc(func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	})
	timer := time.AfterFunc(opts.TTL, release)
	defer func() {
		timer.Stop()
		release()
	}()

	return fn(ctx)
}

func (l *MemoryLocker) acquire(ctx context.Context, key string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		l.mu.Lock()
		if _, busy := l.held[key]; !busy {
			l.held[key] = struct{}{}
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return ErrAcquireTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(memoryRetryInterval):
		}
	}
}
