package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically purges expired entries from a Purger.
type Sweeper struct {
	p        Purger
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper returns a sweeper; a nil logger discards output.
func NewSweeper(p Purger, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{p: p, interval: interval, log: log, now: time.Now}
}

// Run purges every interval until ctx is done. It returns immediately when the
// interval is not positive.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single purge and logs the outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	n, err := s.p.PurgeExpired(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("session.sweep.fail", "err", err)
		}
		return
	}
	if n > 0 {
		s.log.Debug("session.sweep.ok", "purged", n)
	}
}
