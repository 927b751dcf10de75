package api

import (
	"time"

	"warden/cmd/internal/auth/signer"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toTokenResponse(tok string) tokenResponse {
	return tokenResponse{Token: tok, TokenType: "Bearer"}
}

func toSessionResponse(c signer.Claims) sessionResponse {
	return sessionResponse{
		ID:        c.ID,
		Username:  c.Username,
		Role:      string(c.Role),
		IssuedAt:  c.IssuedAt.UTC(),
		ExpiresAt: c.ExpiresAt.UTC(),
	}
}
