package analyzer

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the analysis interval when none is configured.
const DefaultInterval = 30 * time.Minute

// Runner re-runs the full analysis on a fixed interval. A failed pass is
// logged and retried on the next tick; only context cancellation stops
// the runner.
type Runner struct {
	analyzer *Analyzer
	interval time.Duration
}

// NewRunner creates a periodic runner around a. A non-positive interval
// means DefaultInterval.
func NewRunner(a *Analyzer, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		analyzer: a,
		interval: interval,
	}
}

// Run starts the background task.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("analysis runner stopped")
			return
		}
	}
}

// RunOnce runs a single analysis pass (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	if _, _, err := r.analyzer.Run(ctx); err != nil {
		slog.Error("analysis pass failed", "error", err)
	}
}
