package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinic-billing/internal/infra/metrics"
)

// DueExpirer is the slice of the subscription use case the worker drives.
type DueExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// ExpiryWorker periodically sweeps subscriptions whose paid window has
// lapsed. The sweep itself is idempotent, so an overlapping or repeated run
// is harmless.
type ExpiryWorker struct {
	subs     DueExpirer
	interval time.Duration
	log      *zerolog.Logger
}

func NewExpiryWorker(subs DueExpirer, interval time.Duration, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{subs: subs, interval: interval, log: &l}
}

// Run blocks until ctx is canceled. One sweep fires immediately on start so a
// restart never postpones overdue expirations by a full interval.
func (w *ExpiryWorker) Run(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("expiry worker started")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.subs.ExpireDue(ctx, time.Now())
	if err != nil {
		// Partial sweeps still report n; the remainder is retried next tick.
		w.log.Error().Err(err).Int("expired", n).Msg("expiry sweep finished with errors")
		metrics.IncExpirySweepFailures()
	} else if n > 0 {
		w.log.Info().Int("expired", n).Msg("expiry sweep finished")
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
	}
}
