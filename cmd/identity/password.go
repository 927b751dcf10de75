package identity

import (
	"strings"
	"time"

	"warden/cmd/identity/ids"
	"warden/cmd/security/password"
)

// passwords is shared by both directory implementations.
type passwords struct {
	cfg password.Config
}

func (p passwords) VerifyPassword(plain, stored string) (bool, error) {
	return p.cfg.Verify(stored, plain)
}

// rehash returns a fresh hash of plain when stored is outdated.
// The policy is not applied: plain already matched stored.
func (p passwords) rehash(stored, plain string) (string, bool, error) {
	if !p.cfg.NeedsRehash(stored) {
		return "", false, nil
	}
	h, err := p.cfg.Derive(plain)
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

// prepare validates in and returns the user record to store.
func (p passwords) prepare(op string, in CreateUserInput) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, invalid(op, "username is required")
	}
	if username != in.Username {
		return User{}, invalid(op, "username has surrounding whitespace")
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return User{}, invalid(op, "unknown role")
	}

	hash := in.PasswordHash
	if hash == "" {
		h, err := p.cfg.Hash(in.Password)
		if err != nil {
			return User{}, invalid(op, err.Error())
		}
		hash = h
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.New(now)
	if err != nil {
		return User{}, err
	}

	return User{
		ID:           id,
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
	}, nil
}
