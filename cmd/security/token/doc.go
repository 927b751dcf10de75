// Package token derives storage keys from bearer tokens.
//
// Session registries never hold plaintext tokens. They key entries by a
// 64-char hex digest computed here:
//   - HMAC-SHA256(token, key) when a key is configured (production).
//   - SHA-256(token) otherwise (local development).
//
// The digest is stable for a given key so lookups stay O(1) in every backend.
package token
