package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "loan-ledger:lock:"

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by SET NX PX so that several service
// instances sharing one database serialize on the same keys.
type RedisLocker struct {
	client     redis.Cmdable
	ttl        time.Duration
	retryEvery time.Duration
	newToken   func() string
}

func NewRedisLocker(client redis.Cmdable, ttl, retryEvery time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retryEvery <= 0 {
		retryEvery = 25 * time.Millisecond
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryEvery: retryEvery,
		newToken:   func() string { return uuid.NewString() },
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := keyPrefix + key
	token := l.newToken()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, notAcquired(key, ctxErr)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, notAcquired(key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) Unlock {
	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true

		err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lock %s: %w", redisKey, err)
		}
		return nil
	}
}
