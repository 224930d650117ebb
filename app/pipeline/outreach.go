package pipeline

import (
	"context"
	"log/slog"
	"time"

	"leadflow/app/database"
	"leadflow/app/telegram"
)

const (
	pausePollInterval     = time.Minute
	budgetBackoffInterval = 5 * time.Minute
	peerFloodPause        = 24 * time.Hour
)

// outreachLoop works the backlog of new leads under the daily budget and
// the inter-send spacing.
func (o *Orchestrator) outreachLoop(ctx context.Context) error {
	slog.Info("Outreach loop started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if o.isPaused() {
			if err := o.sleep(ctx, pausePollInterval); err != nil {
				return err
			}
			continue
		}

		budget, err := o.budget.GetOrCreate(o.limiter.DailyLimit())
		if err != nil {
			return err
		}
		if budget.Exhausted() {
			slog.Info("Daily budget exhausted", "used", budget.SendsUsed, "max", budget.MaxSends)
			if err := o.sleep(ctx, budgetBackoffInterval); err != nil {
				return err
			}
			continue
		}

		leads, err := o.leads.GetByStatus(database.LeadStatusNew)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			if err := o.sleep(ctx, o.config.CycleInterval); err != nil {
				return err
			}
			continue
		}

		for _, lead := range leads {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if o.isPaused() {
				break
			}

			// Budget may have moved since the batch was fetched.
			budget, err := o.budget.GetOrCreate(o.limiter.DailyLimit())
			if err != nil {
				return err
			}
			if budget.Exhausted() {
				break
			}

			if err := o.sendOutreach(ctx, lead); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("Failed to send outreach", "lead_id", lead.ID, "error", err)
			}

			if err := o.limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

// sendOutreach generates both outreach texts and delivers them through the
// gateway. A throttled outcome leaves the lead new for a later pass; peer
// flood pauses the whole loop for 24 hours.
func (o *Orchestrator) sendOutreach(ctx context.Context, lead database.Lead) error {
	msg, err := o.messages.Get(lead.MessageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.Text == "" {
		return nil
	}

	channel, err := o.channels.Get(msg.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return nil
	}

	lang := lead.Language
	if lang == "" {
		lang = "en"
	}
	channelTitle := channel.Title
	if channelTitle == "" {
		channelTitle = channel.Username
	}
	if channelTitle == "" {
		channelTitle = "channel"
	}

	threadText, err := o.llm.GenerateThreadReply(ctx, msg.Text, lang)
	if err != nil {
		return err
	}
	dmText, err := o.llm.GenerateDM(ctx, msg.Text, lang, channelTitle)
	if err != nil {
		return err
	}

	var result *telegram.SendResult
	outcome, err := o.retry.Do(ctx, func(ctx context.Context) error {
		result, err = o.client.Send(ctx, telegram.SendRequest{
			ChatID:       channel.TelegramID,
			ReplyToMsgID: msg.TelegramMsgID,
			ThreadText:   threadText,
			UserID:       msg.SenderID,
			DMText:       dmText,
		})
		return err
	})
	switch outcome {
	case telegram.OutcomeThrottled:
		slog.Warn("Outreach throttled, leaving lead for a later pass", "lead_id", lead.ID)
		return nil
	case telegram.OutcomeFailed:
		return err
	}

	if result.PeerFlood {
		o.pauseFor(peerFloodPause)
		if err := o.notifier.NotifyPeerFlood(ctx); err != nil {
			slog.Error("Failed to send peer flood alert", "error", err)
		}
		return nil
	}

	if result.ThreadMsgID == 0 && result.DMMsgID == 0 {
		slog.Warn("Neither outreach message was delivered, leaving lead for a later pass", "lead_id", lead.ID)
		return nil
	}

	now := o.now().UTC()
	lead.OutreachText = threadText
	lead.DMText = dmText
	lead.OutreachMsgID = result.ThreadMsgID
	lead.DMMsgID = result.DMMsgID
	lead.Status = database.LeadStatusContacted
	lead.ContactedAt = &now

	if err := o.leads.Update(lead); err != nil {
		return err
	}
	if _, err := o.budget.IncrementSends(); err != nil {
		return err
	}

	slog.Info("Outreach sent", "lead_id", lead.ID, "thread_msg_id", result.ThreadMsgID, "dm_msg_id", result.DMMsgID)

	return nil
}
