package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Hour)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "ip:1")
	assert.False(t, ok)

	// other keys are independent
	ok, _ = l.Allow(ctx, "ip:2")
	assert.True(t, ok)

	now = now.Add(time.Hour)
	ok, _ = l.Allow(ctx, "ip:1")
	assert.True(t, ok)
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client, 5, time.Hour)
	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "referral:submit:email:a@example.com")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, err := l.Allow(ctx, "referral:submit:email:a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl := mr.TTL("ratelimit:referral:submit:email:a@example.com")
	assert.Equal(t, time.Hour, ttl)

	mr.FastForward(time.Hour + time.Second)
	ok, err = l.Allow(ctx, "referral:submit:email:a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_RecoversKeyWithoutTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// счетчик уже выше лимита, а EXPIRE до Redis не дошел
	for i := 0; i < 7; i++ {
		require.NoError(t, client.Incr(ctx, "ratelimit:k").Err())
	}
	require.Equal(t, time.Duration(0), mr.TTL("ratelimit:k"))

	l := NewRedisLimiter(client, 5, time.Hour)
	ok, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("ratelimit:k"))

	mr.FastForward(48 * time.Hour)
	ok, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_ExpiryNotExtended(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLimiter(client, 5, time.Hour)
	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(40 * time.Minute)
	_, err = l.Allow(ctx, "k")
	require.NoError(t, err)

	// окно фиксированное: повторные обращения не продлевают срок
	assert.Equal(t, 20*time.Minute, mr.TTL("ratelimit:k"))
}

func TestRedisLimiter_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	_, err := NewRedisLimiter(client, 5, time.Hour).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	client.Close()
}
