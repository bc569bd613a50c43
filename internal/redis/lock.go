package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker guards work that must not run on two instances at the same time.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisLocker creates a locker that keeps one Redis key per lock name. The
// ttl also bounds how long fn may run, so the key cannot outlive the work.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) Locker {
	if log == nil {
		log = zap.NewNop()
	}
	return &redisLocker{client: client, ttl: ttl, log: log}
}

func (l *redisLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := "lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	acquired := time.Now()
	defer func() {
		held := time.Since(acquired)
		// ctx may be cancelled by now
		released, err := l.release(context.WithoutCancel(ctx), key, token)
		switch {
		case err != nil:
			l.log.Error("failed to release lock",
				zap.String("lock", name),
				zap.Duration("held", held),
				zap.Error(err),
			)
		case !released:
			l.log.Warn("lock expired before release",
				zap.String("lock", name),
				zap.Duration("held", held),
				zap.Duration("ttl", l.ttl),
			)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(runCtx)
}

// compare-and-delete: only the holder's token may remove the key
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// release reports whether this holder still owned the key.
func (l *redisLocker) release(ctx context.Context, key, token string) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	return n == 1, nil
}
