package api

import (
	"errors"
	"testing"
)

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		ok   bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no body", func(c *Config) { c.MaxBodyBytes = 0 }, false},
		{"negative rate", func(c *Config) { c.LoginRatePerMinute = -1 }, false},
		{"zero burst", func(c *Config) { c.LoginBurst = 0 }, false},
		{"limiting off", func(c *Config) { c.LoginRatePerMinute = 0; c.LoginBurst = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(&cfg)
			err := cfg.Check()
			if tt.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
