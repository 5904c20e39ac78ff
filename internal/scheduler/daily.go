package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Daily triggers a job once per day at the configured local hour. It is
// the in-process alternative to cron for environments without one.
type Daily struct {
	hour   int
	loc    *time.Location
	logger *slog.Logger
}

// NewDaily builds a scheduler firing at the given hour in loc.
func NewDaily(hour int, loc *time.Location, logger *slog.Logger) *Daily {
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{hour: hour, loc: loc, logger: logger}
}

// Run executes job immediately, then once per day at the target hour,
// until ctx is cancelled. Job errors are logged and do not stop the loop.
func (d *Daily) Run(ctx context.Context, job func(context.Context) error) error {
	d.logger.Info("scheduler started", "hour", d.hour, "timezone", d.loc.String())

	if err := job(ctx); err != nil {
		d.logger.Error("scheduled run failed", "error", err)
	}

	for {
		wait := d.untilNextRun(time.Now().In(d.loc))
		d.logger.Info("next run scheduled", "wait", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if err := job(ctx); err != nil {
			d.logger.Error("scheduled run failed", "error", err)
		}
	}
}

func (d *Daily) untilNextRun(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, 0, 0, 0, d.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
