package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// summaryLoop posts the lead statistics once a day at the configured UTC hour.
func (o *Orchestrator) summaryLoop(ctx context.Context) error {
	slog.Info("Summary loop started", "hour", o.config.SummaryHour)

	for {
		wait := o.untilNextSummary()
		slog.Debug("Next summary scheduled", "in", wait)

		if err := o.sleep(ctx, wait); err != nil {
			return err
		}

		stats, err := o.leads.StatusCounts()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to collect summary stats", "error", err)
			continue
		}

		if err := o.notifier.SendDailySummary(ctx, stats); err != nil {
			slog.Error("Failed to send daily summary", "error", err)
			continue
		}

		slog.Info("Daily summary sent", "stats", stats)
	}
}

// untilNextSummary returns the duration to the next occurrence of the
// summary hour in UTC.
func (o *Orchestrator) untilNextSummary() time.Duration {
	now := o.now().UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), o.config.SummaryHour, 0, 0, 0, time.UTC)
	if !now.Before(target) {
		target = target.Add(24 * time.Hour)
	}
	return target.Sub(now)
}
