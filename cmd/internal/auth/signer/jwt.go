package signer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"warden/cmd/identity"
)

type jwtClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTSigner signs HS256 JWTs with a shared secret.
type JWTSigner struct {
	issuer string
	ttl    time.Duration
	now    func() time.Time
	secret []byte
	parser *jwt.Parser
}

func newJWTSigner(cfg Config, o options) *JWTSigner {
	return &JWTSigner{
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    o.now,
		secret: []byte(cfg.JWTSecret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithLeeway(cfg.ClockSkew),
			jwt.WithTimeFunc(o.now),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

func (s *JWTSigner) Sign(p Payload) (string, error) {
	if err := checkPayload(p); err != nil {
		return "", err
	}

	now := s.now()
	c := jwtClaims{
		UserID:   p.ID,
		Username: p.Username,
		Role:     string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *JWTSigner) Verify(token string) (Claims, error) {
	var c jwtClaims
	_, err := s.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	role := identity.Role(c.Role)
	if c.UserID == "" || c.Username == "" || !role.Valid() {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Payload: Payload{ID: c.UserID, Username: c.Username, Role: role},
		TokenID: c.RegisteredClaims.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
