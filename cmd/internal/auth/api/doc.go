// Package api exposes the auth lifecycle over HTTP.
//
//	POST /auth/login    {"username","password"} -> 200 {"token"}
//	GET  /auth/session  Bearer                  -> 200 {"id","username","role",...}
//	POST /auth/refresh  Bearer                  -> 200 {"token"}
//	POST /auth/logout   Bearer                  -> 204
//
// Unknown user and wrong password share one wire code, invalid_credentials.
package api
