// Package lock provides best-effort mutual exclusion across resolver
// instances. Acquisition is bounded, and every lock carries a TTL so a
// crashed or hung holder cannot starve other callers forever.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrAcquireTimeout is returned when the lock could not be acquired within
// the caller's acquisition timeout.
var ErrAcquireTimeout = errors.New("lock acquisition timed out")

// Options bound a single WithLock call.
type Options struct {
	// AcquireTimeout caps how long the caller waits for the lock itself.
	AcquireTimeout time.Duration
	// TTL auto-releases the lock if the holder stalls.
	TTL time.Duration
}

// Locker runs a critical section under a named lock. Release is guaranteed
// on normal return, on error inside the section, and by TTL expiry.
type Locker interface {
	WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error
}
