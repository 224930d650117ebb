package pipeline

import (
	"context"
	"log/slog"
	"time"

	"leadflow/app/database"
)

// Channels younger than this never count as dead, even without leads.
const deadChannelMinAge = 7 * 24 * time.Hour

// janitorLoop expires stale leads and deactivates discovered channels that
// never produced anything.
func (o *Orchestrator) janitorLoop(ctx context.Context) error {
	slog.Info("Janitor loop started")

	for {
		if err := o.sweepStaleLeads(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to sweep stale leads", "error", err)
		}
		if err := o.sweepDeadChannels(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to sweep dead channels", "error", err)
		}

		if err := o.sleep(ctx, o.config.JanitorInterval); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) sweepStaleLeads() error {
	stale, err := o.leads.GetStale(o.config.NoReplyTTL)
	if err != nil {
		return err
	}

	for _, lead := range stale {
		lead.Status = database.LeadStatusNoReply
		if err := o.leads.Update(lead); err != nil {
			return err
		}
		slog.Info("Lead expired without reply", "lead_id", lead.ID)
	}

	return nil
}

func (o *Orchestrator) sweepDeadChannels() error {
	dead, err := o.channels.GetDead(deadChannelMinAge)
	if err != nil {
		return err
	}

	for _, channel := range dead {
		if err := o.channels.Deactivate(channel.ID); err != nil {
			return err
		}
		if channel.TelegramID != 0 {
			o.collector.Remove(channel.TelegramID)
		}
		slog.Info("Deactivated dead channel", "title", channel.Title, "telegram_id", channel.TelegramID)
	}

	if len(dead) > 0 {
		slog.Info("Janitor deactivated dead channels", "count", len(dead))
	}

	return nil
}
