package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"warden/cmd/identity"
	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/auth/signer"
	"warden/cmd/security/password"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingDirectory records VerifyPassword calls.
type countingDirectory struct {
	identity.Directory
	verifies atomic.Int64
}

func (d *countingDirectory) VerifyPassword(plain, stored string) (bool, error) {
	d.verifies.Add(1)
	return d.Directory.VerifyPassword(plain, stored)
}

type fixture struct {
	svc      *Service
	dir      *countingDirectory
	sessions *session.MemoryManager
	tokens   signer.Signer
	clock    *fakeClock
}

func fastPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	pw := fastPasswords()
	adminHash, err := pw.Derive("admin")
	require.NoError(t, err)
	bobHash, err := pw.Derive("hunter2")
	require.NoError(t, err)

	dir, err := identity.NewMemoryDirectory(pw,
		identity.User{ID: "1", Username: "admin", Role: identity.RoleAdmin, PasswordHash: adminHash},
		identity.User{ID: "2", Username: "bob", Role: identity.RoleUser, PasswordHash: bobHash},
		identity.User{ID: "3", Username: "broken", Role: identity.RoleUser, PasswordHash: "$argon2id$garbage"},
	)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

	scfg := signer.DefaultConfig()
	scfg.TTL = time.Hour
	tokens, err := signer.New(scfg, signer.WithClock(clock.Now))
	require.NoError(t, err)

	rcfg := session.DefaultConfig()
	rcfg.TTL = scfg.TTL
	sessions := session.NewMemoryManager(rcfg, session.WithClock(clock.Now))

	cd := &countingDirectory{Directory: dir}
	// Keep the dummy verification cheap and well-formed in tests.
	dummy, err := pw.Derive("dummy-password")
	require.NoError(t, err)
	opts = append([]Option{WithDummyHash(dummy)}, opts...)

	svc, err := NewService(cd, tokens, sessions, opts...)
	require.NoError(t, err)

	return &fixture{svc: svc, dir: cd, sessions: sessions, tokens: tokens, clock: clock}
}

func (f *fixture) login(t *testing.T, user, pass string) string {
	t.Helper()
	tok, err := f.svc.Login(context.Background(), Credentials{Username: user, Password: pass})
	require.NoError(t, err)
	return tok
}

func TestLogin_ThenDecode(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t, "admin", "admin")
	assert.NotEmpty(t, tok)
	assert.Equal(t, 1, f.sessions.Count())

	c, err := f.svc.Decode(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "1", c.ID)
	assert.Equal(t, "admin", c.Username)
	assert.Equal(t, identity.RoleAdmin, c.Role)
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	ctx := context.Background()
	pw := fastPasswords()
	legacy, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	dir, err := identity.NewMemoryDirectory(pw,
		identity.User{ID: "2", Username: "bob", Role: identity.RoleUser, PasswordHash: string(legacy)})
	require.NoError(t, err)
	tokens, err := signer.New(signer.DefaultConfig())
	require.NoError(t, err)
	svc, err := NewService(dir, tokens, session.NewMemoryManager(session.DefaultConfig()))
	require.NoError(t, err)

	_, err = svc.Login(ctx, Credentials{Username: "bob", Password: "hunter2"})
	require.NoError(t, err)

	u, err := dir.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, pw.NeedsRehash(u.PasswordHash), "login should store a current argon2id hash")

	// The upgraded hash keeps working.
	_, err = svc.Login(ctx, Credentials{Username: "bob", Password: "hunter2"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, Credentials{Username: "bob", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name string
		cred Credentials
		want error
	}{
		{"wrong password", Credentials{"admin", "wrong"}, ErrInvalidPassword},
		{"unknown user", Credentials{"ghost", "x"}, ErrUserNotFound},
		{"case differs", Credentials{"Admin", "admin"}, ErrUserNotFound},
		{"empty username", Credentials{"", "admin"}, ErrUserNotFound},
		{"malformed stored hash", Credentials{"broken", "anything"}, ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tok, err := f.svc.Login(context.Background(), tt.cred)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, tok)
			assert.Equal(t, 0, f.sessions.Count(), "failed login must not register anything")
		})
	}
}

func TestLogin_UnknownUserStillVerifies(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), Credentials{"ghost", "x"})
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, int64(1), f.dir.verifies.Load())
}

func TestLogin_TwiceGivesDistinctLiveTokens(t *testing.T) {
	f := newFixture(t)
	a := f.login(t, "admin", "admin")
	b := f.login(t, "admin", "admin")

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, f.sessions.Count())
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t, "admin", "admin")

	require.NoError(t, f.svc.Logout(ctx, tok))

	_, err := f.svc.Decode(ctx, tok)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Logout(ctx, tok), ErrSessionNotFound)
}

func TestLogout_OnlyRevokesThatToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.login(t, "admin", "admin")
	b := f.login(t, "admin", "admin")

	require.NoError(t, f.svc.Logout(ctx, a))
	_, err := f.svc.Decode(ctx, b)
	assert.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.login(t, "admin", "admin")

	t2, err := f.svc.Refresh(ctx, t1)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)

	_, err = f.svc.Decode(ctx, t1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	c, err := f.svc.Decode(ctx, t2)
	require.NoError(t, err)
	assert.Equal(t, signer.Payload{ID: "1", Username: "admin", Role: identity.RoleAdmin}, c.Payload)

	_, err = f.svc.Refresh(ctx, t1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, f.sessions.Count())
}

func TestRefresh_NewTokenHasFreshMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.login(t, "bob", "hunter2")
	c1, err := f.svc.Decode(ctx, t1)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	t2, err := f.svc.Refresh(ctx, t1)
	require.NoError(t, err)
	c2, err := f.svc.Decode(ctx, t2)
	require.NoError(t, err)

	assert.Equal(t, c1.Payload, c2.Payload)
	assert.True(t, c2.IssuedAt.After(c1.IssuedAt))
	assert.True(t, c2.ExpiresAt.After(c1.ExpiresAt))
	assert.NotEqual(t, c1.TokenID, c2.TokenID)
}

func TestRefresh_ConcurrentHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t, "admin", "admin")

	const n = 20
	var (
		wg      sync.WaitGroup
		wins    atomic.Int64
		winners = make(chan string, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nt, err := f.svc.Refresh(ctx, tok)
			if err == nil {
				wins.Add(1)
				winners <- nt
				return
			}
			assert.ErrorIs(t, err, ErrSessionNotFound)
		}()
	}
	wg.Wait()
	close(winners)

	require.Equal(t, int64(1), wins.Load())
	_, err := f.svc.Decode(ctx, <-winners)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.sessions.Count())
}

func TestDecode_UnregisteredWellFormedToken(t *testing.T) {
	f := newFixture(t)

	// Signed by the same key but never registered.
	tok, err := f.tokens.Sign(signer.Payload{ID: "1", Username: "admin", Role: identity.RoleAdmin})
	require.NoError(t, err)

	_, err = f.svc.Decode(context.Background(), tok)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_GarbageIsSessionNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Decode(context.Background(), "definitely-not-a-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDecode_RegisteredButTampered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t, "admin", "admin")

	b := []byte(tok)
	i := len(b) - 5
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	forged := string(b)
	require.NoError(t, f.sessions.AddSession(ctx, forged))

	_, err := f.svc.Decode(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.Refresh(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_ExpiresWithRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t, "admin", "admin")

	f.clock.Advance(time.Hour)

	_, err := f.svc.Decode(ctx, tok)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Refresh(ctx, tok)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Logout(ctx, tok), ErrSessionNotFound)
}

// brokenManager fails every call with an infrastructure error.
type brokenManager struct{ err error }

func (m brokenManager) HasSession(context.Context, string) (bool, error)   { return false, m.err }
func (m brokenManager) AddSession(context.Context, string) error           { return m.err }
func (m brokenManager) RemoveSession(context.Context, string) error        { return m.err }
func (m brokenManager) PatchSession(context.Context, string, string) error { return m.err }

func TestRegistryFailureIsNotTaxonomyError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("redis: connection refused")

	svc, err := NewService(f.dir, f.tokens, brokenManager{err: boom})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Login(ctx, Credentials{"admin", "admin"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "internal", Code(err))

	oe, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "AUTH_REGISTRY_FAILED", oe.Code())

	_, err = svc.Decode(ctx, "tok")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, svc.Logout(ctx, "tok"), boom)
}

func TestNewService_NilCollaborators(t *testing.T) {
	f := newFixture(t)

	_, err := NewService(nil, f.tokens, f.sessions)
	assert.Error(t, err)
	_, err = NewService(f.dir, nil, f.sessions)
	assert.Error(t, err)
	_, err = NewService(f.dir, f.tokens, nil)
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()

	tok := f.login(t, "admin", "admin")
	_, _ = f.svc.Login(ctx, Credentials{"admin", "nope"})
	_, _ = f.svc.Decode(ctx, "never-issued")
	require.NoError(t, f.svc.Logout(ctx, tok))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("login", "invalid_password")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("decode", "session_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("logout", "ok")))

	again, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, m.ops, again.ops)
}

func TestCode(t *testing.T) {
	assert.Equal(t, "ok", Code(nil))
	assert.Equal(t, "user_not_found", Code(ErrUserNotFound))
	assert.Equal(t, "invalid_password", Code(ErrInvalidPassword))
	assert.Equal(t, "session_not_found", Code(session.ErrSessionNotFound))
	assert.Equal(t, "invalid_token", Code(signer.ErrInvalidToken))
	assert.Equal(t, "internal", Code(errors.New("x")))
}
