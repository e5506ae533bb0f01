package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, NewLimiter(client)
}

func TestAllow_WithinLimit(t *testing.T) {
	_, l := setupTestRedis(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:test:", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "sid", rule)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := l.Allow(ctx, "sid", rule)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllow_WindowExpires(t *testing.T) {
	mr, l := setupTestRedis(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:test:", Limit: 1, Window: 10 * time.Second}

	ok, _ := l.Allow(ctx, "sid", rule)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, mr.TTL("rl:test:sid"))

	ok, _ = l.Allow(ctx, "sid", rule)
	require.False(t, ok)

	mr.FastForward(11 * time.Second)
	ok, err := l.Allow(ctx, "sid", rule)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_FailsOpen(t *testing.T) {
	mr, l := setupTestRedis(t)
	mr.Close()

	ok, err := l.Allow(context.Background(), "sid", RulePostback)
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestSessionThrottle_IsolatesSessions(t *testing.T) {
	_, l := setupTestRedis(t)
	ctx := context.Background()
	th := NewSessionThrottle(l, Rule{Key: "rl:postback:", Limit: 1, Window: time.Minute})

	ok, _ := th.Allow(ctx, "alice")
	assert.True(t, ok)
	ok, _ = th.Allow(ctx, "alice")
	assert.False(t, ok)
	ok, _ = th.Allow(ctx, "bob")
	assert.True(t, ok)
}
