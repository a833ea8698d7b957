package utils

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedis connects to REDIS_TEST_ADDR or skips the test
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type entry struct {
	Status string `json:"status"`
}

func TestSetVersionedKeepsNewestRevision(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	c := NewCache(rdb, time.Minute)
	key := "test:versioned:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { rdb.Del(ctx, key) })

	written, err := c.SetVersioned(ctx, key, 6, entry{Status: "suspended"})
	require.NoError(t, err)
	assert.True(t, written)

	// A reader that loaded revision 5 before the commit arrives late
	written, err = c.SetVersioned(ctx, key, 5, entry{Status: "active"})
	require.NoError(t, err)
	assert.False(t, written)

	var got entry
	found, deleted, err := c.GetVersioned(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, deleted)
	assert.Equal(t, "suspended", got.Status)

	written, err = c.SetVersioned(ctx, key, 7, nil)
	require.NoError(t, err)
	assert.True(t, written)
	written, err = c.SetVersioned(ctx, key, 6, entry{Status: "active"})
	require.NoError(t, err)
	assert.False(t, written, "a tombstone is not resurrected by an older read")

	found, deleted, err = c.GetVersioned(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, deleted)

	ttl, err := rdb.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestVersionedCacheWithoutRedis(t *testing.T) {
	ctx := context.Background()
	var c *Cache
	found, deleted, err := c.GetVersioned(ctx, "k", &entry{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.False(t, deleted)

	written, err := NewCache(nil, time.Minute).SetVersioned(ctx, "k", 1, entry{})
	assert.NoError(t, err)
	assert.False(t, written)
}
