// README: Run locks for aggregation: Redis SET NX with TTL across instances, a mutex within one process.
package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	runLockKey = "aggregation:run:lock"
	// A crashed holder releases the lock after this long.
	runLockTTL = 10 * time.Minute
)

// Locker guards a single aggregation run. TryLock returns ok=false when another
// run holds the lock; release must be called exactly once after ok=true.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{redis: rdb, key: runLockKey, ttl: runLockTTL}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.redis, []string{l.key}, token).Err()
	}
	return release, true, nil
}

type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
