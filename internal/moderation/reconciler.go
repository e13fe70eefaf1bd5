package moderation

import (
	"context"
	"time"

	"warden/internal/metrics"
	"warden/internal/storage"

	"go.uber.org/zap"
)

// Lifter lifts one expired sanction; implemented by Actions.
type Lifter interface {
	LiftExpired(ctx context.Context, mute storage.Mute) error
}

// Reconciler sweeps the sanction ledger on a fixed interval and lifts every
// active mute whose expiry has passed. Each tick is a full re-derivation from
// persisted state: it holds no state of its own, tolerates restarts and
// external drift, and a failed lift is simply retried on the next tick.
type Reconciler struct {
	store    *storage.Store
	lifter   Lifter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	clock    Clock
}

func NewReconciler(store *storage.Store, lifter Lifter, logger *zap.Logger, m *metrics.Metrics, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		store:    store,
		lifter:   lifter,
		logger:   logger,
		metrics:  m,
		interval: interval,
		clock:    realClock{},
	}
}

func (r *Reconciler) WithClock(clock Clock) {
	r.clock = clock
}

// Run ticks until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reconciliation pass. Permanent mutes (nil expiry) are
// never auto-lifted; one failed lift does not abort the rest of the sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	mutes, err := r.store.ListActiveMutes(ctx)
	if err != nil {
		r.logger.Error("active mute fetch failed", zap.Error(err))
		return
	}

	now := r.clock.Now()
	for _, mute := range mutes {
		if mute.ExpiresAt == nil || mute.ExpiresAt.After(now) {
			continue
		}
		if err := r.lifter.LiftExpired(ctx, mute); err != nil {
			r.metrics.ReconcilerErrors.Inc()
			r.logger.Warn("expired mute lift failed",
				zap.String("guild_id", mute.GuildID),
				zap.String("user_id", mute.UserID),
				zap.Error(err),
			)
			continue
		}
	}
	r.metrics.ReconcilerTicks.Inc()
}
