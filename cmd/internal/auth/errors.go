package auth

import (
	"errors"

	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/auth/signer"
)

// Failure taxonomy. All four are terminal; retrying with the same input fails the same way.
var (
	// ErrUserNotFound: no user has exactly the requested username.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidPassword: the user exists but the password does not match.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrSessionNotFound: the token has no live registry entry.
	ErrSessionNotFound = session.ErrSessionNotFound

	// ErrInvalidToken: the token is registered but fails verification.
	ErrInvalidToken = signer.ErrInvalidToken
)

// Code maps err to a stable snake_case label for logs, metrics and API bodies.
// Errors outside the taxonomy map to "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInvalidPassword):
		return "invalid_password"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}
