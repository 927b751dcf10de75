package app

import (
	"errors"
	"fmt"

	"warden/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// With token.require_hmac set, registry digests must be keyed: a missing or
// short token.hmac_key refuses startup instead of falling back to plain SHA-256.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.Token.RequireHMAC {
		return nil
	}

	key := []byte(cfg.Token.HMACKey)
	if err := token.ValidateHMACKey(key, token.MinHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return fmt.Errorf("security policy: %sTOKEN_REQUIRE_HMAC=true but %sTOKEN_HMAC_KEY is missing", EnvPrefix, EnvPrefix)
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return fmt.Errorf("security policy: %sTOKEN_HMAC_KEY is too short (min %d bytes)", EnvPrefix, token.MinHMACKeyBytes)
		default:
			return err
		}
	}

	// The hasher the registry will use must agree with the policy.
	if !token.NewHasher(key).HMACEnabled() {
		return errors.New("security policy: token hasher is not in HMAC mode")
	}
	return nil
}
