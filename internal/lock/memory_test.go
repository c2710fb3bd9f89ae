package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	opts := Options{AcquireTimeout: time.Second, TTL: time.Second}

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "k", opts, func(ctx context.Context) error {
				mu.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSection)
}

func TestMemoryLockerReleasesOnError(t *testing.T) {
	locker := NewMemoryLocker()
	opts := Options{AcquireTimeout: 50 * time.Millisecond, TTL: time.Second}

	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "k", opts, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The failed section must not leave the lock held.
	err = locker.WithLock(context.Background(), "k", opts, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestMemoryLockerAcquireTimeout(t *testing.T) {
	locker := NewMemoryLocker()

	started := make(chan struct{})
	finish := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "k", Options{AcquireTimeout: time.Second, TTL: time.Minute}, func(ctx context.Context) error {
			close(started)
			<-finish
			return nil
		})
	}()
	<-started
	defer close(finish)

	err := locker.WithLock(context.Background(), "k", Options{AcquireTimeout: 20 * time.Millisecond, TTL: time.Minute}, func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrAcquireTimeout)
}

func TestMemoryLockerTTLBackstop(t *testing.T) {
	locker := NewMemoryLocker()

	hung := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "k", Options{AcquireTimeout: time.Second, TTL: 20 * time.Millisecond}, func(ctx context.Context) error {
			<-hung
			return nil
		})
	}()
	defer close(hung)

	// The TTL must free the key even though the first holder never returns.
	err := locker.WithLock(context.Background(), "k", Options{AcquireTimeout: time.Second, TTL: time.Minute}, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	opts := Options{AcquireTimeout: 50 * time.Millisecond, TTL: time.Minute}

	holding := make(chan struct{})
	finish := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "a", opts, func(ctx context.Context) error {
			close(holding)
			<-finish
			return nil
		})
	}()
	<-holding
	defer close(finish)

	err := locker.WithLock(context.Background(), "b", opts, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err, "distinct keys must not serialize")
}
