package session

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Instrumented counts registry operations by outcome.
type Instrumented struct {
	next Manager
	ops  *prometheus.CounterVec
}

// NewInstrumented wraps next and registers warden_registry_operations_total on reg.
// Registering twice on the same registry reuses the existing collector.
func NewInstrumented(next Manager, reg prometheus.Registerer) (*Instrumented, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Subsystem: "registry",
		Name:      "operations_total",
		Help:      "Session registry operations by operation and result.",
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
	return &Instrumented{next: next, ops: ops}, nil
}

func (m *Instrumented) HasSession(ctx context.Context, tok string) (bool, error) {
	ok, err := m.next.HasSession(ctx, tok)
	switch {
	case err != nil:
		m.ops.WithLabelValues("has", "error").Inc()
	case ok:
		m.ops.WithLabelValues("has", "hit").Inc()
	default:
		m.ops.WithLabelValues("has", "miss").Inc()
	}
	return ok, err
}

func (m *Instrumented) AddSession(ctx context.Context, tok string) error {
	err := m.next.AddSession(ctx, tok)
	m.ops.WithLabelValues("add", resultOf(err)).Inc()
	return err
}

func (m *Instrumented) RemoveSession(ctx context.Context, tok string) error {
	err := m.next.RemoveSession(ctx, tok)
	m.ops.WithLabelValues("remove", resultOf(err)).Inc()
	return err
}

func (m *Instrumented) PatchSession(ctx context.Context, oldToken, newToken string) error {
	err := m.next.PatchSession(ctx, oldToken, newToken)
	m.ops.WithLabelValues("patch", resultOf(err)).Inc()
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateSession):
		return "duplicate"
	default:
		return "error"
	}
}
