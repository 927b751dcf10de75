package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/cmd/security/token"
)

func newRedisManager(t *testing.T, cfg Config) (*RedisManager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, err := NewRedisManager(client, cfg)
	require.NoError(t, err)
	return m, mr
}

func TestRedisManager_Contract(t *testing.T) {
	runManagerContract(t, func(t *testing.T) Manager {
		m, _ := newRedisManager(t, DefaultConfig())
		return m
	})
}

func TestRedisManager_NativeTTL(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	m, mr := newRedisManager(t, cfg)

	require.NoError(t, m.AddSession(ctx, "tok-a"))
	key := "warden:session:" + token.HashSHA256Hex("tok-a")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(time.Minute + time.Second)

	ok, err := m.HasSession(ctx, "tok-a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, m.PatchSession(ctx, "tok-a", "tok-b"), ErrSessionNotFound)
}

func TestRedisManager_PatchCarriesIDAndResetsTTL(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	m, mr := newRedisManager(t, cfg)

	require.NoError(t, m.AddSession(ctx, "tok-a"))
	oldKey := "warden:session:" + token.HashSHA256Hex("tok-a")
	id, err := mr.Get(oldKey)
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	require.NoError(t, m.PatchSession(ctx, "tok-a", "tok-b"))

	newKey := "warden:session:" + token.HashSHA256Hex("tok-b")
	assert.False(t, mr.Exists(oldKey))
	got, err := mr.Get(newKey)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, time.Minute, mr.TTL(newKey))
}

func TestRedisManager_ZeroTTL(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TTL = 0
	m, mr := newRedisManager(t, cfg)

	require.NoError(t, m.AddSession(ctx, "tok-a"))
	require.NoError(t, m.PatchSession(ctx, "tok-a", "tok-b"))

	key := "warden:session:" + token.HashSHA256Hex("tok-b")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Duration(0), mr.TTL(key))
}

func TestRedisManager_ServerDown(t *testing.T) {
	ctx := context.Background()
	m, mr := newRedisManager(t, DefaultConfig())
	mr.Close()

	_, err := m.HasSession(ctx, "tok-a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Error(t, m.Ping(ctx))
}

func TestNewRedisManager_NilClient(t *testing.T) {
	_, err := NewRedisManager(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrConfig)
}
