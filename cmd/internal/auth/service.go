package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"warden/cmd/identity"
	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/auth/signer"
)

// Credentials are a login attempt. They are never stored or logged.
type Credentials struct {
	Username string
	Password string
}

// dummyPasswordHash is verified when the username is unknown so both failure
// paths cost roughly the same. It matches no password.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service implements the token lifecycle. It holds no per-token state.
type Service struct {
	users    identity.Directory
	tokens   signer.Signer
	sessions session.Manager

	log       *slog.Logger
	metrics   *Metrics
	dummyHash string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics enables operation counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDummyHash replaces the hash verified for unknown usernames. It should be
// produced with the same parameters as real user hashes.
func WithDummyHash(h string) Option {
	return func(s *Service) {
		if h != "" {
			s.dummyHash = h
		}
	}
}

// NewService wires the three collaborators.
func NewService(users identity.Directory, tokens signer.Signer, sessions session.Manager, opts ...Option) (*Service, error) {
	switch {
	case users == nil:
		return nil, oops.Code("AUTH_CONFIG").Errorf("nil user directory")
	case tokens == nil:
		return nil, oops.Code("AUTH_CONFIG").Errorf("nil token signer")
	case sessions == nil:
		return nil, oops.Code("AUTH_CONFIG").Errorf("nil session manager")
	}

	s := &Service{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		log:       slog.New(slog.DiscardHandler),
		dummyHash: dummyPasswordHash,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login checks credentials and returns a newly registered token.
// On failure nothing is registered.
func (s *Service) Login(ctx context.Context, c Credentials) (tok string, err error) {
	defer func() { s.metrics.observe("login", err) }()

	u, err := s.users.FindByUsername(ctx, c.Username)
	if err != nil {
		if !identity.IsNotFound(err) {
			return "", oops.Code("AUTH_DIRECTORY_FAILED").
				With("operation", "find user").
				Wrap(err)
		}
		// Unknown user still pays for one verification.
		_, _ = s.users.VerifyPassword(c.Password, s.dummyHash)
		return "", ErrUserNotFound
	}
	if u.Username != c.Username {
		s.log.Warn("auth.login.username_mismatch", "user_id", u.ID)
		return "", ErrUserNotFound
	}

	ok, err := s.users.VerifyPassword(c.Password, u.PasswordHash)
	if err != nil {
		s.log.Error("auth.login.bad_hash", "user_id", u.ID, "err", err)
		return "", ErrInvalidPassword
	}
	if !ok {
		return "", ErrInvalidPassword
	}
	s.upgradePassword(ctx, u, c.Password)

	tok, err = s.tokens.Sign(signer.Payload{ID: u.ID, Username: u.Username, Role: u.Role})
	if err != nil {
		return "", oops.Code("AUTH_SIGN_FAILED").
			With("user_id", u.ID).
			Wrap(err)
	}
	if err := s.sessions.AddSession(ctx, tok); err != nil {
		return "", oops.Code("AUTH_REGISTRY_FAILED").
			With("operation", "add session").
			With("user_id", u.ID).
			Wrap(err)
	}
	return tok, nil
}

// upgradePassword re-hashes outdated stored hashes when the directory
// supports it. Failures are logged; the login proceeds.
func (s *Service) upgradePassword(ctx context.Context, u identity.User, plain string) {
	up, ok := s.users.(identity.PasswordUpgrader)
	if !ok {
		return
	}
	switch done, err := up.UpgradePassword(ctx, u, plain); {
	case err != nil:
		s.log.Warn("auth.login.rehash_fail", "user_id", u.ID, "err", err)
	case done:
		s.log.Info("auth.login.rehashed", "user_id", u.ID)
	}
}

// Decode returns the claims of a live token.
// The registry is consulted before any cryptography: an unregistered token is
// ErrSessionNotFound even if it is also malformed.
func (s *Service) Decode(ctx context.Context, tok string) (claims signer.Claims, err error) {
	defer func() { s.metrics.observe("decode", err) }()
	return s.decode(ctx, tok)
}

func (s *Service) decode(ctx context.Context, tok string) (signer.Claims, error) {
	live, err := s.sessions.HasSession(ctx, tok)
	if err != nil {
		return signer.Claims{}, oops.Code("AUTH_REGISTRY_FAILED").
			With("operation", "has session").
			Wrap(err)
	}
	if !live {
		return signer.Claims{}, ErrSessionNotFound
	}

	c, err := s.tokens.Verify(tok)
	if err != nil {
		return signer.Claims{}, ErrInvalidToken
	}
	return c, nil
}

// Refresh replaces a live token with a new one carrying the same identity.
// Of several concurrent refreshes of one token exactly one succeeds; the others
// get ErrSessionNotFound.
func (s *Service) Refresh(ctx context.Context, tok string) (newTok string, err error) {
	defer func() { s.metrics.observe("refresh", err) }()

	c, err := s.decode(ctx, tok)
	if err != nil {
		return "", err
	}

	newTok, err = s.tokens.Sign(c.Payload)
	if err != nil {
		return "", oops.Code("AUTH_SIGN_FAILED").
			With("user_id", c.ID).
			Wrap(err)
	}

	if err := s.sessions.PatchSession(ctx, tok, newTok); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return "", ErrSessionNotFound
		}
		return "", oops.Code("AUTH_REGISTRY_FAILED").
			With("operation", "patch session").
			With("user_id", c.ID).
			Wrap(err)
	}
	return newTok, nil
}

// Logout revokes a live token. A second logout of the same token fails with
// ErrSessionNotFound.
func (s *Service) Logout(ctx context.Context, tok string) (err error) {
	defer func() { s.metrics.observe("logout", err) }()

	live, err := s.sessions.HasSession(ctx, tok)
	if err != nil {
		return oops.Code("AUTH_REGISTRY_FAILED").
			With("operation", "has session").
			Wrap(err)
	}
	if !live {
		return ErrSessionNotFound
	}

	if err := s.sessions.RemoveSession(ctx, tok); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return oops.Code("AUTH_REGISTRY_FAILED").
			With("operation", "remove session").
			Wrap(err)
	}
	return nil
}
