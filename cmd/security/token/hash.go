package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// MinHMACKeyBytes is the smallest key accepted when HMAC mode is required.
const MinHMACKeyBytes = 32

// Hasher maps tokens to registry keys.
// The zero value and a nil *Hasher both hash with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. An empty key selects SHA-256 mode.
func NewHasher(key []byte) *Hasher {
	if len(key) == 0 {
		return &Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}
}

// HMACEnabled reports whether the hasher is keyed.
func (h *Hasher) HMACEnabled() bool {
	return h != nil && len(h.key) > 0
}

// Hex returns the registry key for tok.
func (h *Hasher) Hex(tok string) string {
	if !h.HMACEnabled() {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, h.key)
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// ValidateHMACKey enforces the key policy used when HMAC mode is mandatory.
// Length is measured in bytes because the key is used as raw bytes.
func ValidateHMACKey(key []byte, minBytes int) error {
	if len(key) == 0 {
		return ErrHMACKeyMissing
	}
	if minBytes > 0 && len(key) < minBytes {
		return ErrHMACKeyTooShort
	}
	return nil
}
