// Package identity is warden's user directory.
//
// A Directory finds users by exact username and verifies passwords against the
// stored hash. Two implementations ship: an in-memory directory seeded at startup
// and a PostgreSQL directory over the warden.users table.
package identity
