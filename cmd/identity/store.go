package identity

import (
	"context"
	"time"
)

// Role is the authorization role carried in issued tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// User is a directory record.
// PasswordHash is an argon2id PHC string or a bcrypt hash; it never leaves the process.
type User struct {
	ID           string
	Username     string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput describes a new directory user.
// When PasswordHash is set it is stored as-is and Password is ignored;
// otherwise Password is checked against the policy and hashed.
type CreateUserInput struct {
	Username     string
	Role         Role
	Password     string
	PasswordHash string
	Now          time.Time
}

// Directory is the read boundary used by authentication.
type Directory interface {
	// FindByUsername returns the user with exactly this username, or an error
	// matching ErrNotFound.
	FindByUsername(ctx context.Context, username string) (User, error)

	// VerifyPassword reports whether plain matches the stored hash.
	// A malformed stored hash is an error, not a mismatch.
	VerifyPassword(plain, stored string) (bool, error)
}

// PasswordUpgrader re-hashes a verified password stored with legacy (bcrypt)
// or weaker-than-configured parameters. It reports whether the stored hash changed.
type PasswordUpgrader interface {
	UpgradePassword(ctx context.Context, u User, plain string) (bool, error)
}

// Writer creates directory users (seeding, admin tooling).
type Writer interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
}
