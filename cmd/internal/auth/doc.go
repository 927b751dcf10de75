// Package auth orchestrates the token lifecycle: login, decode, refresh, logout.
//
// Service is stateless. It checks credentials against an identity.Directory,
// mints tokens with a signer.Signer and records liveness in a session.Manager.
// Every lifecycle transition of a token is a single registry operation:
//
//	absent --login--> live --refresh--> live' (old token absent)
//	live --logout--> absent
//	live --registry expiry--> absent
//
// A token never returns to live once absent.
package auth
