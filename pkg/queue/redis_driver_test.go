package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/checkout/pkg/queue"
)

// Runs only when REDIS_ADDR points at a reachable server.
func TestRedisDriverRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	key := "checkout:test:" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), key) })
	d := queue.NewRedisDriver(rdb).WithKey(key)

	require.NoError(t, d.Push(ctx, []byte("first")))
	require.NoError(t, d.Push(ctx, []byte("second")))

	got, err := d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	got, err = d.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}
