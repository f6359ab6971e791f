// Package lock keeps ingestion cycles from overlapping. A run is recorded as ok
// when it starts, so a second concurrent cycle would see a half-written run as
// the latest snapshot.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tlwatch/pkg/platform/sentinel"
)

// DefaultKey is the Redis key guarding the ingestion cycle.
const DefaultKey = "tlwatch:ingest:cycle"

// Release frees a held lock.
type Release func(ctx context.Context) error

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-instance Redis lock (SET NX PX plus token-checked delete).
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire takes the lock or fails with sentinel.ErrConflict when another holder
// has it. The lock expires after the configured TTL even if never released.
func (l *RedisLock) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, sentinel.ErrConflict)
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		return nil
	}, nil
}

// LocalLock guards cycles within one process. It is used when Redis is not
// configured.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(_ context.Context) (Release, error) {
	if !l.mu.TryLock() {
		return nil, fmt.Errorf("acquire local lock: %w", sentinel.ErrConflict)
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
