package session

import (
	"context"
	"time"

	"warden/cmd/identity/ids"
	"warden/cmd/security/token"
)

// Manager is the registry of live tokens. Implementations are safe for
// concurrent use.
type Manager interface {
	// HasSession reports whether token has a live entry.
	HasSession(ctx context.Context, tok string) (bool, error)

	// AddSession registers token as live.
	AddSession(ctx context.Context, tok string) error

	// RemoveSession deletes the entry for token, or returns ErrSessionNotFound.
	RemoveSession(ctx context.Context, tok string) error

	// PatchSession atomically replaces oldToken's entry with newToken.
	// No observer ever sees both live or neither live. When oldToken has no live
	// entry it returns ErrSessionNotFound and changes nothing.
	PatchSession(ctx context.Context, oldToken, newToken string) error
}

// Purger removes expired entries in bulk. Backends with native expiry do not
// implement it.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Entry is the liveness record behind a token.
// The entry ID is stable across PatchSession.
type Entry struct {
	ID        string
	CreatedAt time.Time
	RotatedAt time.Time // zero until the first patch
	ExpiresAt time.Time // zero means no expiry
}

func (e Entry) liveAt(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	now       func() time.Time
	schema    string
	keyPrefix string
}

func defaultOptions() options {
	return options{
		now:       time.Now,
		schema:    "warden",
		keyPrefix: "warden:session:",
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSchema sets the PostgreSQL schema (default "warden").
func WithSchema(schema string) Option {
	return func(o *options) { o.schema = schema }
}

// WithKeyPrefix sets the Redis key prefix (default "warden:session:").
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keyPrefix = prefix }
}

// base holds what every backend shares.
type base struct {
	hasher *token.Hasher
	ttl    time.Duration
	now    func() time.Time
}

func newBase(cfg Config, o options) base {
	return base{
		hasher: token.NewHasher(cfg.HMACKey),
		ttl:    cfg.TTL,
		now:    o.now,
	}
}

func (b base) key(tok string) string { return b.hasher.Hex(tok) }

// expiresAt returns the expiry for an entry written at now, zero when TTL is 0.
func (b base) expiresAt(now time.Time) time.Time {
	if b.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(b.ttl)
}

func (b base) newEntry(now time.Time) (Entry, error) {
	id, err := ids.New(now)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: id, CreatedAt: now, ExpiresAt: b.expiresAt(now)}, nil
}
