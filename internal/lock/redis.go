package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisLockPrefix = "resolver:lock:"

// releaseScript deletes the lock only if this process still owns it, so a
// holder that outlived its TTL cannot release someone else's acquisition.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

const acquireRetryInterval = 100 * time.Millisecond

// RedisLocker implements Locker on a shared Redis instance using SET NX with
// an owner token per acquisition.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	redisKey := redisLockPrefix + key
	owner := uuid.NewString()

	if err := l.acquire(ctx, redisKey, owner, opts); err != nil {
		return err
	}
	defer l.release(redisKey, owner)

	return fn(ctx)
}

func (l *RedisLocker) acquire(ctx context.Context, key, owner string, opts Options) error {
	deadline := time.Now().Add(opts.AcquireTimeout)

	for {
		ok, err := l.client.SetNX(ctx, key, owner, opts.TTL).Result()
		if err != nil {
			return fmt.Errorf("lock acquire: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrAcquireTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

// release uses a fresh short-lived context: the lock must be released even
// when the critical section's context is already canceled.
func (l *RedisLocker) release(key, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = l.client.Eval(ctx, releaseScript, []string{key}, owner).Err()
}
