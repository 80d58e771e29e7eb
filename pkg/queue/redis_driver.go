package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "checkout:queue:jobs"

// RedisDriver keeps jobs in a Redis list: LPUSH to enqueue, BRPOP to take.
type RedisDriver struct {
	rdb     *redis.Client
	key     string
	timeout time.Duration
}

func NewRedisDriver(rdb *redis.Client) *RedisDriver {
	return &RedisDriver{rdb: rdb, key: defaultRedisKey, timeout: 5 * time.Second}
}

// WithKey returns a copy of d that uses a different list key.
func (d *RedisDriver) WithKey(key string) *RedisDriver {
	cp := *d
	cp.key = key
	return &cp
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop waits up to five seconds for a job and returns (nil, nil) on timeout.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.timeout, d.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}
