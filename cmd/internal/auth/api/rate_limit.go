package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterPruneAbove = 10_000
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// loginLimiter keeps one token bucket per client key.
type loginLimiter struct {
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

// newLoginLimiter returns nil when perMinute is zero (limiting disabled).
func newLoginLimiter(perMinute, burst int) *loginLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &loginLimiter{
		every:    time.Minute / time.Duration(perMinute),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
	}
}

// allow reports whether key may attempt a login at now; when not, it returns
// how long until the next token is available.
func (l *loginLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	if l == nil || key == "" {
		return true, 0
	}

	e := l.getOrCreate(key, now)
	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, l.every
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *loginLimiter) getOrCreate(key string, now time.Time) *limiterEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.limiters[key]; ok {
		e.lastSeen = now
		return e
	}
	if len(l.limiters) >= limiterPruneAbove {
		l.pruneLocked(now)
	}
	e := &limiterEntry{lim: rate.NewLimiter(rate.Every(l.every), l.burst), lastSeen: now}
	l.limiters[key] = e
	return e
}

func (l *loginLimiter) pruneLocked(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.limiters, k)
		}
	}
}

func (l *loginLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
