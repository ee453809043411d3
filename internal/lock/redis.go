package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/logger"
	"github.com/google/uuid"
)

const keyPrefix = "cocktail-voucher:lock:"

// Only the holder of the token may delete the key.
const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// RedisLocker holds keys in redis with SET NX PX so that several server
// instances serialize on the same phone number.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker connects to redis and verifies the connection.
func NewRedisLocker(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisLocker, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis lock node %s: %w", opts.Addr, err)
	}

	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 50 * time.Millisecond,
	}, nil
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	name := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := r.client.Eval(context.Background(), unlockScript, []string{name}, token).Err(); err != nil {
				logger.Warningf("Failed to release lock %s: %v", key, err)
			}
		})
	}, nil
}

// Close closes the redis client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
