package app

import (
	"errors"
	"fmt"
	"time"

	"warden/cmd/internal/auth/api"
	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/auth/signer"
	"warden/cmd/security/password"
)

// ErrConfig indicates an invalid runtime configuration.
var ErrConfig = errors.New("invalid warden config")

// Directory backends.
const (
	DirectoryMemory   = "memory"
	DirectoryPostgres = "postgres"
)

// Config contains all runtime configuration.
// Field tags are koanf keys; see LoadConfig for sources.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Session   SessionConfig   `koanf:"session"`
	Token     TokenConfig     `koanf:"token"`
	Directory DirectoryConfig `koanf:"directory"`
	Auth      AuthConfig      `koanf:"auth"`
	Password  PasswordConfig  `koanf:"password"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	MaxHeaderBytes    int           `koanf:"max_header_bytes"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	// Format is "json" or "pretty".
	Format string `koanf:"format"`
	Color  bool   `koanf:"color"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	Schema   string `koanf:"schema"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type TokenConfig struct {
	Algorithm            string        `koanf:"algorithm"`
	Issuer               string        `koanf:"issuer"`
	TTL                  time.Duration `koanf:"ttl"`
	ClockSkew            time.Duration `koanf:"clock_skew"`
	PasetoV4SecretKeyHex string        `koanf:"paseto_v4_secret_key_hex"`
	JWTSecret            string        `koanf:"jwt_secret"`

	// HMACKey keys registry digests of issued tokens.
	HMACKey string `koanf:"hmac_key"`
	// RequireHMAC refuses to start without a usable HMACKey.
	RequireHMAC bool `koanf:"require_hmac"`
}

type DirectoryConfig struct {
	Backend string `koanf:"backend"`
	// SeedAdminPassword seeds an "admin" account at startup. Empty disables seeding.
	SeedAdminPassword string `koanf:"seed_admin_password"`
}

type AuthConfig struct {
	TrustProxy         bool  `koanf:"trust_proxy"`
	MaxBodyBytes       int64 `koanf:"max_body_bytes"`
	LoginRatePerMinute int   `koanf:"login_rate_per_minute"`
	LoginBurst         int   `koanf:"login_burst"`
}

type PasswordConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib"`
	Iterations  uint32 `koanf:"iterations"`
	Parallelism uint8  `koanf:"parallelism"`
	MinLength   int    `koanf:"min_length"`
	MaxLength   int    `koanf:"max_length"`
}

// DefaultConfig returns development defaults: everything in memory,
// an ephemeral signing key and the seeded admin/admin account.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	tok := signer.DefaultConfig()
	sess := session.DefaultConfig()
	auth := api.DefaultConfig()

	return Config{
		HTTP: HTTPConfig{
			Addr:              "0.0.0.0:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Schema:   "warden",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			KeyPrefix: "warden:session:",
		},
		Session: SessionConfig{
			Backend:       sess.Backend,
			SweepInterval: sess.SweepInterval,
		},
		Token: TokenConfig{
			Algorithm: tok.Algorithm,
			Issuer:    tok.Issuer,
			TTL:       tok.TTL,
			ClockSkew: tok.ClockSkew,
		},
		Directory: DirectoryConfig{
			Backend:           DirectoryMemory,
			SeedAdminPassword: "admin",
		},
		Auth: AuthConfig{
			TrustProxy:         auth.TrustProxy,
			MaxBodyBytes:       auth.MaxBodyBytes,
			LoginRatePerMinute: auth.LoginRatePerMinute,
			LoginBurst:         auth.LoginBurst,
		},
		Password: PasswordConfig{
			MemoryKiB:   pw.Params.MemoryKiB,
			Iterations:  pw.Params.Iterations,
			Parallelism: pw.Params.Parallelism,
			MinLength:   pw.Policy.MinLength,
			MaxLength:   pw.Policy.MaxLength,
		},
	}
}

// Check validates cross-cutting rules and every component config.
func (c Config) Check() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: empty http addr", ErrConfig)
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: http shutdown timeout must be positive", ErrConfig)
	}
	switch c.Log.Format {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfig, c.Log.Format)
	}

	switch c.Directory.Backend {
	case DirectoryMemory:
	case DirectoryPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: directory backend postgres needs database.url", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown directory backend %q", ErrConfig, c.Directory.Backend)
	}

	switch c.Session.Backend {
	case session.BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: session backend postgres needs database.url", ErrConfig)
		}
	case session.BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: session backend redis needs redis.addr", ErrConfig)
		}
	}

	if err := c.PasswordConfig().Check(); err != nil {
		return err
	}
	if err := c.SignerConfig().Check(); err != nil {
		return err
	}
	if err := c.SessionConfig().Check(); err != nil {
		return err
	}
	return c.APIConfig().Check()
}

// PasswordConfig maps the password section onto password.Config.
// Salt and key lengths stay at their defaults.
func (c Config) PasswordConfig() password.Config {
	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = c.Password.MemoryKiB
	pw.Params.Iterations = c.Password.Iterations
	pw.Params.Parallelism = c.Password.Parallelism
	pw.Policy.MinLength = c.Password.MinLength
	pw.Policy.MaxLength = c.Password.MaxLength
	return pw
}

func (c Config) SignerConfig() signer.Config {
	return signer.Config{
		Algorithm:            c.Token.Algorithm,
		Issuer:               c.Token.Issuer,
		TTL:                  c.Token.TTL,
		ClockSkew:            c.Token.ClockSkew,
		PasetoV4SecretKeyHex: c.Token.PasetoV4SecretKeyHex,
		JWTSecret:            c.Token.JWTSecret,
	}
}

// SessionConfig ties the registry TTL to the token TTL so a session entry
// never outlives its token.
func (c Config) SessionConfig() session.Config {
	var key []byte
	if c.Token.HMACKey != "" {
		key = []byte(c.Token.HMACKey)
	}
	return session.Config{
		Backend:       c.Session.Backend,
		TTL:           c.Token.TTL,
		HMACKey:       key,
		SweepInterval: c.Session.SweepInterval,
	}
}

func (c Config) APIConfig() api.Config {
	return api.Config{
		TrustProxy:         c.Auth.TrustProxy,
		MaxBodyBytes:       c.Auth.MaxBodyBytes,
		LoginRatePerMinute: c.Auth.LoginRatePerMinute,
		LoginBurst:         c.Auth.LoginBurst,
	}
}
