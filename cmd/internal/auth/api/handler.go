package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"warden/cmd/internal/auth"
	"warden/cmd/internal/auth/signer"
)

// Authenticator is the lifecycle surface the handlers drive.
// *auth.Service implements it.
type Authenticator interface {
	Login(ctx context.Context, c auth.Credentials) (string, error)
	Decode(ctx context.Context, tok string) (signer.Claims, error)
	Refresh(ctx context.Context, tok string) (string, error)
	Logout(ctx context.Context, tok string) error
}

// Handler wires HTTP auth endpoints to an Authenticator.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     Authenticator
	limiter *loginLimiter
	now     func() time.Time
}

// HandlerOption configures optional handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides time.Now for rate limiting.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, svc Authenticator, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("auth api: nil service")
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:     log,
		cfg:     cfg,
		svc:     svc,
		limiter: newLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/session", h.handleSession)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	var ipKey string
	if ip != nil {
		ipKey = ip.String()
	}
	if ok, retryAfter := h.limiter.allow(ipKey, h.now()); !ok {
		h.auditLoginRateLimited(ctx, ip, ua, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	tok, err := h.svc.Login(ctx, auth.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
			h.auditLoginFailed(ctx, ip, ua, req.Username, auth.Code(err))
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		default:
			h.log.Error("auth.login.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditLoginSuccess(ctx, ip, ua, req.Username)
	writeJSON(w, http.StatusOK, toTokenResponse(tok))
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	tok, ok := h.requireBearer(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Decode(r.Context(), tok)
	if err != nil {
		h.writeTokenError(w, "auth.session.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(c))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	tok, ok := h.requireBearer(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	newTok, err := h.svc.Refresh(ctx, tok)
	if err != nil {
		h.auditRefresh(ctx, ip, r.UserAgent(), auth.Code(err))
		h.writeTokenError(w, "auth.refresh.fail", err)
		return
	}

	h.auditRefresh(ctx, ip, r.UserAgent(), "ok")
	writeJSON(w, http.StatusOK, toTokenResponse(newTok))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	tok, ok := h.requireBearer(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	err := h.svc.Logout(ctx, tok)
	h.auditLogout(ctx, ip, r.UserAgent(), auth.Code(err))
	switch {
	case err == nil:
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	default:
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) requireBearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok := bearerToken(r)
	if tok == "" {
		writeUnauthorized(w, "missing_token", "bearer token required")
		return "", false
	}
	return tok, true
}

// writeTokenError maps Decode/Refresh failures to responses.
func (h *Handler) writeTokenError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, auth.ErrSessionNotFound):
		writeUnauthorized(w, "session_not_found", "session not found")
	case errors.Is(err, auth.ErrInvalidToken):
		writeUnauthorized(w, "invalid_token", "invalid token")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
