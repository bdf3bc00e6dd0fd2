package worker

import (
	"context"
	"log/slog"
	"time"
)

const retentionInterval = time.Hour

// DefaultRetentionDays is how long ledger rows are kept when config does
// not override it.
const DefaultRetentionDays = 30

// RetentionStore is the pruning interface consumed by RetentionWorker.
type RetentionStore interface {
	DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionWorker hourly prunes usage ledger rows older than the
// retention horizon.
type RetentionWorker struct {
	store RetentionStore
	days  int
	now   func() time.Time
}

// NewRetentionWorker creates a RetentionWorker keeping days of history.
// days <= 0 selects the default.
func NewRetentionWorker(store RetentionStore, days int) *RetentionWorker {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return &RetentionWorker{store: store, days: days, now: time.Now}
}

// Name returns the worker identifier.
func (w *RetentionWorker) Name() string { return "retention" }

// Run prunes once at startup, then hourly until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) error {
	w.prune(ctx)

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.prune(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *RetentionWorker) prune(ctx context.Context) {
	cutoff := w.now().AddDate(0, 0, -w.days)
	removed, err := w.store.DeleteUsageBefore(ctx, cutoff)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "usage retention prune failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if removed > 0 {
		slog.LogAttrs(ctx, slog.LevelInfo, "usage retention pruned",
			slog.Int64("removed", removed),
			slog.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
}
