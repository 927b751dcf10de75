package signer

import (
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"warden/cmd/identity"
)

// PasetoV4Signer signs PASETO v4.public tokens with an Ed25519 key.
type PasetoV4Signer struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
	ephemeral bool

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

func newPasetoV4Signer(cfg Config, o options) (*PasetoV4Signer, error) {
	var (
		secret    paseto.V4AsymmetricSecretKey
		ephemeral bool
	)
	if cfg.PasetoV4SecretKeyHex == "" {
		secret = paseto.NewV4AsymmetricSecretKey()
		ephemeral = true
	} else {
		k, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
		if err != nil {
			return nil, fmt.Errorf("%w: paseto v4 secret key", ErrConfig)
		}
		secret = k
	}

	return &PasetoV4Signer{
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		now:       o.now,
		ephemeral: ephemeral,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// PublicKeyHex exports the verification key for other services.
func (s *PasetoV4Signer) PublicKeyHex() string { return s.public.ExportHex() }

// Ephemeral reports whether the key was generated at startup.
// Tokens from an ephemeral key do not survive a restart.
func (s *PasetoV4Signer) Ephemeral() bool { return s.ephemeral }

func (s *PasetoV4Signer) Sign(p Payload) (string, error) {
	if err := checkPayload(p); err != nil {
		return "", err
	}

	now := s.now()
	tok := paseto.NewToken()
	tok.SetIssuer(s.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(s.ttl))
	tok.SetJti(uuid.NewString())

	tok.SetString("id", p.ID)
	tok.SetString("username", p.Username)
	tok.SetString("role", string(p.Role))

	return tok.V4Sign(s.secret, nil), nil
}

func (s *PasetoV4Signer) Verify(token string) (Claims, error) {
	// Fresh parser per call so rules never accumulate.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(s.issuer))
	p.AddRule(validWithin(s.now(), s.clockSkew))

	parsed, err := p.ParseV4Public(s.public, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var c Claims
	if c.ID, err = parsed.GetString("id"); err != nil || c.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	if c.Username, err = parsed.GetString("username"); err != nil || c.Username == "" {
		return Claims{}, ErrInvalidToken
	}
	role, err := parsed.GetString("role")
	if err != nil || !identity.Role(role).Valid() {
		return Claims{}, ErrInvalidToken
	}
	c.Role = identity.Role(role)

	c.IssuedAt, _ = parsed.GetIssuedAt()
	c.ExpiresAt, _ = parsed.GetExpiration()
	c.TokenID, _ = parsed.GetJti()
	return c, nil
}

// validWithin accepts a token whose window contains now, widened by skew on both
// sides. Missing time claims are rejected.
func validWithin(now time.Time, skew time.Duration) paseto.Rule {
	return func(t paseto.Token) error {
		iat, err := t.GetIssuedAt()
		if err != nil {
			return err
		}
		nbf, err := t.GetNotBefore()
		if err != nil {
			return err
		}
		exp, err := t.GetExpiration()
		if err != nil {
			return err
		}

		late := now.Add(skew)
		if iat.After(late) || nbf.After(late) {
			return fmt.Errorf("token not yet valid")
		}
		if !exp.After(now.Add(-skew)) {
			return fmt.Errorf("token expired")
		}
		return nil
	}
}
