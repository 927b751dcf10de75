package token

import "errors"

// Returned by ValidateHMACKey.
var (
	ErrHMACKeyMissing  = errors.New("token: hmac key not set")
	ErrHMACKeyTooShort = errors.New("token: hmac key below minimum length")
)
