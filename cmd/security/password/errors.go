package password

import "errors"

var (
	// Policy violations from Validate and Hash.
	ErrPasswordTooShort = errors.New("password: below minimum length")
	ErrPasswordTooLong  = errors.New("password: above maximum length")
	ErrWeakPassword     = errors.New("password: too easy to guess")

	// ErrInvalidHash is returned for hashes that are malformed or not argon2id.
	ErrInvalidHash = errors.New("password: unrecognized hash")
	ErrConfig      = errors.New("password: bad config")
)
