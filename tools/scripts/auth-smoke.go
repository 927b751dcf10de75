// Package main provides a CI-friendly smoke test for the warden HTTP API.
//
// It validates:
//   - login with seeded credentials
//   - session decode
//   - refresh rotation (old token rejected, new token live)
//   - logout, and that a second logout reports session_not_found
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

type sessionResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type smokeClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:8080", "warden base URL")
		username = flag.String("user", "admin", "username to log in with")
		password = flag.String("password", os.Getenv("WARDEN_SMOKE_PASSWORD"), "password (default $WARDEN_SMOKE_PASSWORD)")
		timeout  = flag.Duration("timeout", 5*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *password == "" {
		fatalf("password required: pass -password or set WARDEN_SMOKE_PASSWORD")
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	t1 := c.mustLogin(root, *username, *password)
	sess := c.mustSession(root, t1)
	if sess.Username != *username {
		fatalf("session: username=%q want %q", sess.Username, *username)
	}

	t2 := c.mustRefresh(root, t1)
	if t2 == t1 {
		fatalf("refresh: token was not rotated")
	}
	c.mustFail(root, http.MethodGet, "/auth/session", t1, http.StatusUnauthorized, "session_not_found")
	c.mustSession(root, t2)

	c.mustLogout(root, t2)
	c.mustFail(root, http.MethodPost, "/auth/logout", t2, http.StatusNotFound, "session_not_found")

	fmt.Printf("OK: user=%s id=%s role=%s\n", sess.Username, sess.ID, sess.Role)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func (c *smokeClient) do(parent context.Context, method, path, bearer string, body any) (int, []byte) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("%s %s: encode: %v", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read body: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode, raw
}

func (c *smokeClient) mustToken(status int, raw []byte, step string) string {
	if status != http.StatusOK {
		fatalf("%s: status=%d body=%s", step, status, raw)
	}
	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("%s: decode: %v", step, err)
	}
	if out.Token == "" || out.TokenType != "Bearer" {
		fatalf("%s: unexpected response %s", step, raw)
	}
	return out.Token
}

func (c *smokeClient) mustLogin(ctx context.Context, username, password string) string {
	status, raw := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	return c.mustToken(status, raw, "login")
}

func (c *smokeClient) mustRefresh(ctx context.Context, tok string) string {
	status, raw := c.do(ctx, http.MethodPost, "/auth/refresh", tok, nil)
	return c.mustToken(status, raw, "refresh")
}

func (c *smokeClient) mustSession(ctx context.Context, tok string) sessionResponse {
	status, raw := c.do(ctx, http.MethodGet, "/auth/session", tok, nil)
	if status != http.StatusOK {
		fatalf("session: status=%d body=%s", status, raw)
	}
	var out sessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("session: decode: %v", err)
	}
	return out
}

func (c *smokeClient) mustLogout(ctx context.Context, tok string) {
	status, raw := c.do(ctx, http.MethodPost, "/auth/logout", tok, nil)
	if status != http.StatusNoContent {
		fatalf("logout: status=%d body=%s", status, raw)
	}
}

func (c *smokeClient) mustFail(ctx context.Context, method, path, tok string, wantStatus int, wantCode string) {
	status, raw := c.do(ctx, method, path, tok, nil)
	if status != wantStatus {
		fatalf("%s %s: status=%d want %d body=%s", method, path, status, wantStatus, raw)
	}
	var out errorResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("%s %s: decode error body: %v", method, path, err)
	}
	if out.Error.Code != wantCode {
		fatalf("%s %s: error=%q want %q", method, path, out.Error.Code, wantCode)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
