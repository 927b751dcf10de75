package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"warden/cmd/internal/auth/session"
)

// newRegistry returns a registry carrying the Go and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// registerSessionGauge exposes the live entry count of an in-memory registry.
func registerSessionGauge(reg prometheus.Registerer, m *session.MemoryManager) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "warden_registry_sessions",
			Help: "Entries currently held by the in-memory session registry.",
		},
		func() float64 { return float64(m.Count()) },
	))
}
