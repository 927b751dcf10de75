package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// prettyHandler is the development log format:
//
//	15:04:05.000 INF http.request method=POST path=/auth/login status=200 src=middleware.go:42
//
// Attributes added through WithAttrs are rendered once, when added.
type prettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	source bool
	color  bool

	prefix string // open groups, "a.b."
	pre    string // rendered WithAttrs fields
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{mu: &sync.Mutex{}, w: w, level: slog.LevelInfo, color: color}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	for _, a := range attrs {
		h.field(&b, h.prefix, a)
	}
	cp := *h
	cp.pre += b.String()
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name = strings.TrimSpace(name); name == "" {
		return h
	}
	cp := *h
	cp.prefix += name + "."
	return &cp
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.WriteString(h.paint(ts.Format("15:04:05.000"), ansiDim))
	b.WriteByte(' ')
	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(h.paint(r.Message, ansiBold))
	b.WriteString(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		h.field(&b, h.prefix, a)
		return true
	})
	if h.source && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if f.File != "" {
			b.WriteString(" src=")
			b.WriteString(h.paint(filepath.Base(f.File)+":"+strconv.Itoa(f.Line), ansiDim))
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) field(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)

	if a.Value.Kind() == slog.KindGroup {
		if key != "" {
			prefix += key + "."
		}
		for _, ga := range a.Value.Group() {
			h.field(b, prefix, ga)
		}
		return
	}
	if key == "" {
		return
	}

	text, code := plainValue(a.Value), ""
	if f, ok := fieldFormats[key]; ok {
		text, code = f(a.Value)
	}
	if alias, ok := keyAliases[key]; ok {
		key = alias
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(h.paint(text, code))
}

func (h *prettyHandler) levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return h.paint("ERR", ansiRed)
	case l >= slog.LevelWarn:
		return h.paint("WRN", ansiYellow)
	case l >= slog.LevelInfo:
		return h.paint("INF", ansiBlue)
	default:
		return h.paint("DBG", ansiMagenta)
	}
}

func (h *prettyHandler) paint(s, code string) string {
	if !h.color || code == "" {
		return s
	}
	return code + s + ansiReset
}

// keyAliases shortens request log keys.
var keyAliases = map[string]string{
	"status_class": "class",
	"duration_ms":  "duration",
}

// fieldFormats render well-known keys and pick their color.
var fieldFormats = map[string]func(slog.Value) (string, string){
	"method": func(v slog.Value) (string, string) {
		m := strings.ToUpper(strings.TrimSpace(v.String()))
		switch m {
		case "GET":
			return m, ansiGreen
		case "POST":
			return m, ansiBlue
		case "DELETE":
			return m, ansiRed
		}
		return m, ansiMagenta
	},
	"path": func(v slog.Value) (string, string) {
		return quote(v.String()), ansiCyan
	},
	"status": func(v slog.Value) (string, string) {
		n, ok := intValue(v)
		if !ok {
			return plainValue(v), ""
		}
		return strconv.FormatInt(n, 10), statusColor(n)
	},
	"status_class": func(v slog.Value) (string, string) {
		c := strings.TrimSpace(v.String())
		if c == "" {
			return `""`, ""
		}
		return c, statusColor(int64(c[0]-'0') * 100)
	},
	"duration_ms": func(v slog.Value) (string, string) {
		ms, ok := intValue(v)
		if !ok {
			return plainValue(v), ""
		}
		s := strconv.FormatInt(ms, 10) + "ms"
		switch {
		case ms >= 1000:
			return s, ansiRed
		case ms >= 250:
			return s, ansiYellow
		}
		return s, ansiDim
	},
	"result": func(v slog.Value) (string, string) {
		r := strings.ToLower(strings.TrimSpace(v.String()))
		switch r {
		case "ok":
			return r, ansiGreen
		case "redirect":
			return r, ansiCyan
		case "server_error", "internal", "error":
			return r, ansiRed
		case "":
			return `""`, ""
		}
		return quote(r), ansiYellow
	},
}

func statusColor(code int64) string {
	switch {
	case code >= 500:
		return ansiRed
	case code >= 400:
		return ansiYellow
	case code >= 300:
		return ansiCyan
	case code >= 200:
		return ansiGreen
	}
	return ""
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return quote(v.String())
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quote(err.Error())
		}
		return quote(fmt.Sprint(v.Any()))
	}
	// Int64, Uint64, Float64, Bool and Duration print without spaces.
	return v.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func intValue(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= 1<<63-1 {
			return int64(u), true
		}
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	}
	return 0, false
}
