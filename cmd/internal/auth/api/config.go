package api

import (
	"errors"
	"fmt"
)

// ErrConfig indicates an invalid API configuration.
var ErrConfig = errors.New("invalid auth api config")

// Config controls HTTP-level limits.
type Config struct {
	// TrustProxy makes clientIP honour X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// LoginRatePerMinute and LoginBurst bound login attempts per client IP.
	// A zero rate disables limiting.
	LoginRatePerMinute int
	LoginBurst         int
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:       1 << 20, // 1 MiB
		LoginRatePerMinute: 20,
		LoginBurst:         5,
	}
}

// Check validates c.
func (c Config) Check() error {
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max body bytes must be positive", ErrConfig)
	}
	if c.LoginRatePerMinute < 0 {
		return fmt.Errorf("%w: negative login rate", ErrConfig)
	}
	if c.LoginRatePerMinute > 0 && c.LoginBurst <= 0 {
		return fmt.Errorf("%w: login burst must be positive when limiting", ErrConfig)
	}
	return nil
}
