package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// patchScript swaps KEYS[1] for KEYS[2], carrying the entry ID over.
// Returns 1 on success, 0 when the old key is absent, -1 when the new key exists.
var patchScript = redis.NewScript(`
local id = redis.call('GET', KEYS[1])
if not id then
  return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return -1
end
redis.call('DEL', KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 then
  redis.call('SET', KEYS[2], id, 'PX', ttl)
else
  redis.call('SET', KEYS[2], id)
end
return 1
`)

// RedisManager implements Manager on Redis. Each entry is one key holding the
// entry ID, expiring natively after the configured TTL.
type RedisManager struct {
	base

	client redis.UniversalClient
	prefix string
}

// NewRedisManager builds a Redis-backed registry. The client is owned by the caller.
func NewRedisManager(client redis.UniversalClient, cfg Config, opts ...Option) (*RedisManager, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrConfig)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisManager{
		base:   newBase(cfg, o),
		client: client,
		prefix: o.keyPrefix,
	}, nil
}

func (m *RedisManager) redisKey(tok string) string { return m.prefix + m.key(tok) }

func (m *RedisManager) HasSession(ctx context.Context, tok string) (bool, error) {
	if tok == "" {
		return false, nil
	}
	n, err := m.client.Exists(ctx, m.redisKey(tok)).Result()
	if err != nil {
		return false, fmt.Errorf("session.HasSession: %w", err)
	}
	return n > 0, nil
}

func (m *RedisManager) AddSession(ctx context.Context, tok string) error {
	if tok == "" {
		return ErrEmptyToken
	}
	e, err := m.newEntry(m.now())
	if err != nil {
		return err
	}

	ok, err := m.client.SetNX(ctx, m.redisKey(tok), e.ID, m.ttl).Result()
	if err != nil {
		return fmt.Errorf("session.AddSession: %w", err)
	}
	if !ok {
		return ErrDuplicateSession
	}
	return nil
}

func (m *RedisManager) RemoveSession(ctx context.Context, tok string) error {
	n, err := m.client.Del(ctx, m.redisKey(tok)).Result()
	if err != nil {
		return fmt.Errorf("session.RemoveSession: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (m *RedisManager) PatchSession(ctx context.Context, oldToken, newToken string) error {
	if newToken == "" {
		return ErrEmptyToken
	}

	res, err := patchScript.Run(ctx, m.client,
		[]string{m.redisKey(oldToken), m.redisKey(newToken)},
		m.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("session.PatchSession: %w", err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return ErrSessionNotFound
	default:
		return ErrDuplicateSession
	}
}

// Ping checks connectivity for readiness probes.
func (m *RedisManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}
