// Package signer issues and verifies the signed session tokens handed to clients.
//
// A Signer is stateless: it proves a token was minted here and is within its
// validity window. Whether the token is still live is the session registry's call.
package signer

import (
	"errors"
	"fmt"
	"time"

	"warden/cmd/identity"
)

var (
	// ErrInvalidToken covers bad signatures, malformed input, wrong issuer and expiry.
	// Callers must not branch on the underlying cause.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidPayload is returned by Sign when the payload lacks identity fields.
	ErrInvalidPayload = errors.New("invalid token payload")

	// ErrConfig indicates a broken signer configuration.
	ErrConfig = errors.New("invalid token signer config")
)

// Supported algorithms.
const (
	AlgPasetoV4 = "paseto-v4"
	AlgJWTHS256 = "jwt-hs256"
)

// Payload is the identity a token carries. It is immutable once issued.
type Payload struct {
	ID       string
	Username string
	Role     identity.Role
}

// Claims is what verification yields: the payload plus token metadata.
type Claims struct {
	Payload

	IssuedAt  time.Time
	ExpiresAt time.Time
	// TokenID is random per token, so two tokens for the same payload differ.
	TokenID string
}

// Signer produces and checks tamper-evident tokens.
type Signer interface {
	Sign(p Payload) (string, error)
	Verify(token string) (Claims, error)
}

// Config selects and parameterizes the signing algorithm.
type Config struct {
	Algorithm string
	Issuer    string
	TTL       time.Duration
	ClockSkew time.Duration

	// PasetoV4SecretKeyHex is the hex Ed25519 secret key for v4.public.
	// Empty means an ephemeral key is generated at startup.
	PasetoV4SecretKeyHex string

	// JWTSecret is the HS256 shared secret (at least 32 bytes).
	JWTSecret string
}

// MinJWTSecretBytes is the shortest accepted HS256 secret.
const MinJWTSecretBytes = 32

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgPasetoV4,
		Issuer:    "warden",
		TTL:       time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

// Check validates cfg without building keys.
func (c Config) Check() error {
	if c.Issuer == "" {
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}
	if c.ClockSkew < 0 || c.ClockSkew >= c.TTL {
		return fmt.Errorf("%w: clock skew must be in [0, ttl)", ErrConfig)
	}

	switch c.Algorithm {
	case AlgPasetoV4:
	case AlgJWTHS256:
		if len(c.JWTSecret) < MinJWTSecretBytes {
			return fmt.Errorf("%w: jwt secret shorter than %d bytes", ErrConfig, MinJWTSecretBytes)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrConfig, c.Algorithm)
	}
	return nil
}

// Option tweaks a Signer at construction.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds the Signer selected by cfg.Algorithm.
func New(cfg Config, opts ...Option) (Signer, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Algorithm {
	case AlgJWTHS256:
		return newJWTSigner(cfg, o), nil
	default:
		return newPasetoV4Signer(cfg, o)
	}
}

func checkPayload(p Payload) error {
	if p.ID == "" || p.Username == "" || !p.Role.Valid() {
		return ErrInvalidPayload
	}
	return nil
}
