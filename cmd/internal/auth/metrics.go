package auth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's collectors.
type Metrics struct {
	ops *prometheus.CounterVec
}

// NewMetrics registers warden_auth_operations_total on reg.
// A collector already registered on reg is reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "auth",
		Name:      "operations_total",
		Help:      "Auth lifecycle operations by operation and result.",
	}, []string{"op", "result"})

	if err := reg.Register(ops); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		ops = existing
	}
	return &Metrics{ops: ops}, nil
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, Code(err)).Inc()
}
