package session

import "errors"

var (
	// ErrSessionNotFound is returned when a token has no live registry entry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when a token is already registered.
	ErrDuplicateSession = errors.New("session already registered")

	// ErrEmptyToken is returned when an empty token is registered.
	ErrEmptyToken = errors.New("empty token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
