// Package session is the authoritative registry of live tokens.
//
// A token is live iff the registry holds a non-expired entry for it; a valid
// signature alone is not enough. Entries are keyed by a digest of the token
// (HMAC-SHA256 when a key is configured, SHA-256 otherwise) so the plaintext
// never reaches storage.
//
// Three Manager backends ship: MemoryManager (single process), PostgresManager
// and RedisManager (shared across replicas). PatchSession is atomic in each.
package session
