package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/repository"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultLockRetry = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redislib.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a repository.Locker shared by every replica through redis. A holder that
// dies releases the key when the TTL runs out.
type Locker struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

var _ repository.Locker = (*Locker)(nil)

func NewLocker(client *redislib.Client, prefix string, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{
		client: client,
		prefix: prefix + "lock:",
		ttl:    ttl,
		retry:  defaultLockRetry,
		logger: logger.Named("redis_locker"),
	}
}

// Lock polls until the key is free or ctx ends.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
