package api

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Audit lines go to the structured log under the "auth.audit.*" event names.
// Tokens and passwords are never included.

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, username, reason string) {
	h.audit(ctx, slog.LevelWarn, "auth.audit.login.failed", ip, ua,
		slog.String("username", username),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, ip net.IP, ua, username string) {
	h.audit(ctx, slog.LevelInfo, "auth.audit.login.success", ip, ua,
		slog.String("username", username),
	)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua string, retryAfter time.Duration) {
	h.audit(ctx, slog.LevelWarn, "auth.audit.login.rate_limited", ip, ua,
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) auditRefresh(ctx context.Context, ip net.IP, ua, result string) {
	h.audit(ctx, slog.LevelInfo, "auth.audit.refresh", ip, ua,
		slog.String("result", result),
	)
}

func (h *Handler) auditLogout(ctx context.Context, ip net.IP, ua, result string) {
	h.audit(ctx, slog.LevelInfo, "auth.audit.logout", ip, ua,
		slog.String("result", result),
	)
}

func (h *Handler) audit(ctx context.Context, level slog.Level, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	base := make([]slog.Attr, 0, len(attrs)+2)
	if ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		base = append(base, slog.String("user_agent", ua))
	}
	h.log.LogAttrs(ctx, level, action, append(base, attrs...)...)
}
