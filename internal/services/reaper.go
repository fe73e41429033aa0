package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/johnwmail/pastelite/internal/metrics"
	"github.com/johnwmail/pastelite/storage"
)

// Reaper periodically removes expired pastes from backends that have no
// native expiry. Retrieval never depends on it having run.
type Reaper struct {
	store    storage.PasteStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewReaper creates a reaper for the given store
func NewReaper(store storage.PasteStore, interval time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled. It returns at once
// when the store expires records on its own.
func (r *Reaper) Run(ctx context.Context) {
	if _, ok := r.store.(storage.Sweeper); !ok {
		r.logger.Debug("storage expires pastes natively, reaper disabled")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reaper sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs a single pass and returns the number of pastes removed
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	sweeper, ok := r.store.(storage.Sweeper)
	if !ok {
		return 0, nil
	}
	removed, err := sweeper.DeleteExpired(ctx, r.now())
	if removed > 0 {
		metrics.Reaped.Add(float64(removed))
		r.logger.Info("removed expired pastes", "count", removed)
	}
	return removed, err
}
