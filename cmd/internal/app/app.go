// Package app wires the warden server runtime: config, logging, storage
// backends, the auth service and its HTTP routes.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"warden/cmd/identity"
	"warden/cmd/internal/auth"
	"warden/cmd/internal/auth/api"
	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/auth/signer"
	"warden/cmd/security/password"
)

// App is the warden server runtime. It owns the DB pool and Redis client.
type App struct {
	cfg Config
	log Logger

	reg     *prometheus.Registry
	dbPool  *pgxpool.Pool
	redis   *redis.Client
	svc     *auth.Service
	sweeper *session.Sweeper
	handler http.Handler

	// checks run on /readyz, keyed by backend name.
	checks map[string]func(context.Context) error

	closeOnce sync.Once
}

// New constructs a fully wired App. Backends named in cfg are dialed and
// pinged here, so a returned App is ready to serve.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.Log)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		reg:    newRegistry(),
		checks: make(map[string]func(context.Context) error),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if needsDB(cfg) {
		a.dbPool, err = NewDBPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		pool := a.dbPool
		a.checks["db"] = func(ctx context.Context) error { return PingDB(ctx, pool, 2*time.Second) }
		log.Info("db.enabled", "schema", cfg.Database.Schema)
	}
	if cfg.Session.Backend == session.BackendRedis {
		a.redis, err = NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("redis.enabled", "addr", cfg.Redis.Addr)
	}

	pwCfg := cfg.PasswordConfig()

	users, err := a.newDirectory(ctx, pwCfg)
	if err != nil {
		return nil, err
	}

	tokens, err := signer.New(cfg.SignerConfig())
	if err != nil {
		return nil, err
	}
	if ps, ok := tokens.(*signer.PasetoV4Signer); ok && ps.Ephemeral() {
		log.Warn("token.signer.ephemeral_key",
			"public_key", ps.PublicKeyHex(),
			"hint", "set "+EnvPrefix+"TOKEN_PASETO_V4_SECRET_KEY_HEX; tokens die with this process",
		)
	}

	sessions, err := a.newManager()
	if err != nil {
		return nil, err
	}

	metrics, err := auth.NewMetrics(a.reg)
	if err != nil {
		return nil, err
	}

	dummy, err := pwCfg.Derive(rand.Text())
	if err != nil {
		return nil, err
	}

	a.svc, err = auth.NewService(users, tokens, sessions,
		auth.WithLogger(log),
		auth.WithMetrics(metrics),
		auth.WithDummyHash(dummy),
	)
	if err != nil {
		return nil, err
	}

	authHandler, err := api.NewHandler(log, a.svc, cfg.APIConfig())
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	a.registerHTTP(mux, authHandler)
	a.handler = WithRequestLogging(WithRecover(WithSecurityHeaders(mux), log), log)

	log.Info("app.ready",
		"directory", cfg.Directory.Backend,
		"session_backend", cfg.Session.Backend,
		"token_algorithm", cfg.Token.Algorithm,
		"token_ttl", cfg.Token.TTL,
		"hmac_digests", cfg.Token.HMACKey != "",
	)
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the auth service.
func (a *App) Service() *auth.Service { return a.svc }

// Close releases owned resources. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.log.Error("redis.close.fail", "err", err)
			}
		}
		if a.dbPool != nil {
			a.dbPool.Close()
		}
	})
}

func needsDB(cfg Config) bool {
	return cfg.Directory.Backend == DirectoryPostgres || cfg.Session.Backend == session.BackendPostgres
}

// newDirectory builds the user directory and seeds the admin account.
func (a *App) newDirectory(ctx context.Context, pwCfg password.Config) (identity.Directory, error) {
	type directory interface {
		identity.Directory
		identity.Writer
	}

	var d directory
	switch a.cfg.Directory.Backend {
	case DirectoryPostgres:
		pg, err := identity.NewPostgresDirectory(a.dbPool, pwCfg, identity.WithSchema(a.cfg.Database.Schema))
		if err != nil {
			return nil, err
		}
		d = pg
	default:
		mem, err := identity.NewMemoryDirectory(pwCfg)
		if err != nil {
			return nil, err
		}
		d = mem
	}

	if err := a.seedAdmin(ctx, d, pwCfg); err != nil {
		return nil, err
	}
	return d, nil
}

// seedAdmin creates the "admin" account. The seed password bypasses the
// length policy so the development default admin/admin keeps working.
func (a *App) seedAdmin(ctx context.Context, w identity.Writer, pwCfg password.Config) error {
	pw := a.cfg.Directory.SeedAdminPassword
	if pw == "" {
		return nil
	}
	if pw == "admin" {
		a.log.Warn("directory.seed.default_password", "username", "admin")
	}

	hash, err := pwCfg.Derive(pw)
	if err != nil {
		return err
	}

	u, err := w.CreateUser(ctx, identity.CreateUserInput{
		Username:     "admin",
		Role:         identity.RoleAdmin,
		PasswordHash: hash,
	})
	switch {
	case err == nil:
		a.log.Info("directory.seed.ok", "user_id", u.ID)
		return nil
	case identity.IsConflict(err):
		a.log.Info("directory.seed.exists", "username", "admin")
		return nil
	default:
		return err
	}
}

// newManager builds the session registry, instruments it and prepares the
// sweeper for backends that need explicit purging.
func (a *App) newManager() (session.Manager, error) {
	sessCfg := a.cfg.SessionConfig()

	var (
		m      session.Manager
		purger session.Purger
	)
	switch sessCfg.Backend {
	case session.BackendPostgres:
		pg, err := session.NewPostgresManager(a.dbPool, sessCfg, session.WithSchema(a.cfg.Database.Schema))
		if err != nil {
			return nil, err
		}
		m, purger = pg, pg
	case session.BackendRedis:
		rm, err := session.NewRedisManager(a.redis, sessCfg, session.WithKeyPrefix(a.cfg.Redis.KeyPrefix))
		if err != nil {
			return nil, err
		}
		m = rm
		a.checks["redis"] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return rm.Ping(ctx)
		}
	default:
		mem := session.NewMemoryManager(sessCfg)
		if err := registerSessionGauge(a.reg, mem); err != nil {
			return nil, err
		}
		m, purger = mem, mem
	}

	if purger != nil {
		a.sweeper = session.NewSweeper(purger, sessCfg.SweepInterval, a.log)
	}

	inst, err := session.NewInstrumented(m, a.reg)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Run serves HTTP and sweeps expired sessions until ctx is done or the
// server fails. Owned resources are closed before returning.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    a.cfg.HTTP.MaxHeaderBytes,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if a.sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.sweeper.Run(sweepCtx)
		}()
	}
	defer func() {
		stopSweep()
		wg.Wait()
	}()

	a.log.Info("server.start", "addr", a.cfg.HTTP.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}
