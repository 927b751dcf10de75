// Package password hashes and verifies user passwords.
//
// New hashes are Argon2id in PHC string form:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Verify also accepts bcrypt hashes ($2a$, $2b$, $2y$) so directories migrated
// from older systems keep working; NeedsRehash flags them for upgrade.
//
// Stored hashes are treated as untrusted input: Argon2id parameters that exceed
// the configured cost by a wide margin are refused instead of computed.
package password
