// Package worker runs calendar-driven background jobs next to the session loop.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
)

// WeeklyResetter zeroes the weekly score column.
type WeeklyResetter interface {
	ResetWeekly(ctx context.Context) (int64, error)
}

// WeeklyReset clears weekly scores every Monday at 00:00 UTC.
type WeeklyReset struct {
	repo    WeeklyResetter
	onReset func()
	logger  *logger.Logger
	timeout time.Duration

	now      func() time.Time
	newTimer func(d time.Duration) (<-chan time.Time, func() bool)
}

// NewWeeklyReset creates the job. onReset runs after every successful reset
// and may be nil.
func NewWeeklyReset(repo WeeklyResetter, onReset func(), log *logger.Logger) *WeeklyReset {
	return &WeeklyReset{
		repo:    repo,
		onReset: onReset,
		logger:  log,
		timeout: 30 * time.Second,
		now:     time.Now,
		newTimer: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
}

// NextMonday returns the first Monday 00:00 UTC strictly after t.
func NextMonday(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := (int(time.Monday) - int(midnight.Weekday()) + 7) % 7
	next := midnight.AddDate(0, 0, days)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// Run sleeps until each reset boundary and resets, until ctx is cancelled.
func (w *WeeklyReset) Run(ctx context.Context) error {
	for {
		next := NextMonday(w.now())
		w.logger.Infof("Weekly reset scheduled for %s", next.Format(time.RFC3339))

		fire, stop := w.newTimer(next.Sub(w.now()))
		select {
		case <-ctx.Done():
			stop()
			w.logger.Info("Weekly reset worker stopped.")
			return nil
		case <-fire:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error(err.Error())
			}
		}
	}
}

// RunOnce performs a single reset.
func (w *WeeklyReset) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n, err := w.repo.ResetWeekly(ctx)
	if err != nil {
		return fmt.Errorf("weekly reset failed: %w", err)
	}
	if w.onReset != nil {
		w.onReset()
	}
	w.logger.Event("WEEKLY_RESET", "SYSTEM", fmt.Sprintf("cleared weekly score of %d players", n))
	return nil
}
