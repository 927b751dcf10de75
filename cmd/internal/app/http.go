package app

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/cmd/internal/auth/api"
)

func (a *App) registerHTTP(mux *http.ServeMux, auth *api.Handler) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	names := make([]string, 0, len(a.checks))
	for name := range a.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	// Ready means every configured backend answers.
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, name := range names {
			if err := a.checks[name](r.Context()); err != nil {
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.not_ready", "backend", name, "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{Registry: a.reg}))

	auth.Register(mux)
}
