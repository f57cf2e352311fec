package redis

import (
	"context"
	"sync"
	"time"

	"auction-core/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

const defaultLockRetry = 20 * time.Millisecond

// Locker is a KeyedLocker shared by every instance using the same Redis.
// Keys are stored under prefix. A lock expires after ttl if its holder never
// releases it.
type Locker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    logger.Logger
}

func NewLocker(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  defaultLockRetry,
		log:    log,
	}
}

func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := l.prefix + ":" + name
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}, nil
}

// release deletes the key only while it still carries our token.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.client.Eval(ctx, releaseLockScript, []string{key}, token).Err(); err != nil {
		l.log.Warn("Failed to release lock", "key", key, "error", err)
	}
}
