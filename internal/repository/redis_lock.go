package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only while it still holds our token,
// so an expired lock re-acquired by another instance is left alone.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker hands out short-lived named locks shared by every instance
// pointed at the same Redis.  The status sweeper uses it so only one
// instance advances sessions per tick.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// TryLock attempts to take the named lock for ttl.  It never waits: ok is
// false when another holder owns the lock.  release must be called once
// the work is done.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	key := l.prefix + ":" + name
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}
	return release, true, nil
}
