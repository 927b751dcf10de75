package session

import (
	"fmt"
	"time"

	"warden/cmd/security/token"
)

// Backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config defines registry behaviour.
type Config struct {
	// Backend selects the Manager implementation.
	Backend string

	// TTL is the registry entry lifetime. It should equal the token TTL so an
	// entry dies with its token. Zero disables registry expiry.
	TTL time.Duration

	// HMACKey keys the token digest. Empty falls back to plain SHA-256.
	HMACKey []byte

	// SweepInterval is how often expired entries are purged (memory, postgres).
	SweepInterval time.Duration
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMemory,
		TTL:           time.Hour,
		SweepInterval: time.Minute,
	}
}

// Check validates c. It wraps ErrConfig.
func (c Config) Check() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrConfig, c.Backend)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: negative ttl", ErrConfig)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: negative sweep interval", ErrConfig)
	}
	if len(c.HMACKey) > 0 {
		if err := token.ValidateHMACKey(c.HMACKey, token.MinHMACKeyBytes); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	return nil
}
