package pipeline

import (
	"context"
	"log/slog"

	"leadflow/app/database"
	"leadflow/app/telegram"
)

const threadReplyLimit = 10

// replyLoop periodically polls outreach threads for replies and promotes
// replied leads. Push replies (DMs) arrive through handlePrivateMessage.
func (o *Orchestrator) replyLoop(ctx context.Context) error {
	slog.Info("Reply loop started")

	for {
		if err := o.pollThreadReplies(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to poll thread replies", "error", err)
		}
		if err := o.forwardPositiveReplies(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to forward replies", "error", err)
		}

		if err := o.sleep(ctx, o.config.ReplyCheckInterval); err != nil {
			return err
		}
	}
}

// handlePrivateMessage matches an incoming DM against contacted leads by
// sender and records it as a reply.
func (o *Orchestrator) handlePrivateMessage(ctx context.Context, msg telegram.IncomingMessage) {
	if msg.SenderID == o.ourUserID || msg.Text == "" {
		return
	}

	leads, err := o.leads.GetByStatus(database.LeadStatusContacted)
	if err != nil {
		slog.Error("Failed to load contacted leads", "error", err)
		return
	}

	for _, lead := range leads {
		original, err := o.messages.Get(lead.MessageID)
		if err != nil {
			slog.Error("Failed to load lead message", "lead_id", lead.ID, "error", err)
			continue
		}
		if original == nil || original.SenderID != msg.SenderID {
			continue
		}

		if err := o.processReply(ctx, lead, msg.Text, msg.TelegramMsgID, msg.SenderID); err != nil {
			slog.Error("Failed to process DM reply", "lead_id", lead.ID, "error", err)
		}
		break
	}

	if err := o.forwardPositiveReplies(ctx); err != nil {
		slog.Error("Failed to forward replies", "error", err)
	}
}

// pollThreadReplies checks the thread under each contacted lead's outreach
// message for answers we have not recorded yet.
func (o *Orchestrator) pollThreadReplies(ctx context.Context) error {
	leads, err := o.leads.GetByStatus(database.LeadStatusContacted)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lead.OutreachMsgID == 0 {
			continue
		}

		original, err := o.messages.Get(lead.MessageID)
		if err != nil {
			return err
		}
		if original == nil {
			continue
		}
		channel, err := o.channels.Get(original.ChannelID)
		if err != nil {
			return err
		}
		if channel == nil {
			continue
		}

		replies, err := o.client.ThreadReplies(ctx, channel.TelegramID, lead.OutreachMsgID, threadReplyLimit)
		if err != nil {
			slog.Warn("Failed to fetch thread replies", "lead_id", lead.ID, "error", err)
			continue
		}

		recorded, err := o.leads.GetReplies(lead.ID)
		if err != nil {
			return err
		}
		seen := make(map[int64]struct{}, len(recorded))
		for _, r := range recorded {
			seen[r.TelegramMsgID] = struct{}{}
		}

		for _, reply := range replies {
			if reply.Text == "" || reply.SenderID == o.ourUserID {
				continue
			}
			if _, ok := seen[reply.TelegramMsgID]; ok {
				continue
			}
			if err := o.processReply(ctx, lead, reply.Text, reply.TelegramMsgID, reply.SenderID); err != nil {
				slog.Error("Failed to process thread reply", "lead_id", lead.ID, "error", err)
			}
		}
	}

	return nil
}

// processReply records a reply with its sentiment and moves the lead to
// replied. A failed sentiment call degrades to unclear rather than dropping
// the reply.
func (o *Orchestrator) processReply(ctx context.Context, lead database.Lead, text string, msgID, senderID int64) error {
	outreachText := lead.OutreachText
	if outreachText == "" {
		outreachText = lead.DMText
	}

	sentiment := database.SentimentUnclear
	result, err := o.llm.AnalyzeSentiment(ctx, outreachText, text)
	if err != nil {
		slog.Warn("Sentiment analysis failed, recording as unclear", "lead_id", lead.ID, "error", err)
	} else if result != nil && result.Sentiment != "" {
		sentiment = result.Sentiment
	}

	if _, err := o.leads.InsertReply(database.Reply{
		LeadID:        lead.ID,
		TelegramMsgID: msgID,
		SenderID:      senderID,
		Text:          text,
		Sentiment:     sentiment,
		ReceivedAt:    o.now().UTC(),
	}); err != nil {
		return err
	}

	now := o.now().UTC()
	lead.Status = database.LeadStatusReplied
	lead.RepliedAt = &now
	if err := o.leads.Update(lead); err != nil {
		return err
	}

	slog.Info("Reply recorded", "lead_id", lead.ID, "sender_id", senderID, "sentiment", sentiment)

	return nil
}

// forwardPositiveReplies resolves replied leads: the first positive reply
// wins and hands the lead to the operator; otherwise any negative reply
// closes it.
func (o *Orchestrator) forwardPositiveReplies(ctx context.Context) error {
	leads, err := o.leads.GetByStatus(database.LeadStatusReplied)
	if err != nil {
		return err
	}

	for _, lead := range leads {
		replies, err := o.leads.GetReplies(lead.ID)
		if err != nil {
			return err
		}

		var positive *database.Reply
		hasNegative := false
		for i := range replies {
			switch replies[i].Sentiment {
			case database.SentimentPositive:
				if positive == nil {
					positive = &replies[i]
				}
			case database.SentimentNegative:
				hasNegative = true
			}
		}

		if positive != nil {
			if err := o.forwardLead(ctx, lead, *positive); err != nil {
				return err
			}
			continue
		}
		if hasNegative {
			lead.Status = database.LeadStatusNegative
			if err := o.leads.Update(lead); err != nil {
				return err
			}
			slog.Info("Lead closed as negative", "lead_id", lead.ID)
		}
	}

	return nil
}

func (o *Orchestrator) forwardLead(ctx context.Context, lead database.Lead, reply database.Reply) error {
	var senderUsername, channelTitle string
	if msg, err := o.messages.Get(lead.MessageID); err == nil && msg != nil {
		senderUsername = msg.SenderUsername
		if channel, err := o.channels.Get(msg.ChannelID); err == nil && channel != nil {
			channelTitle = channel.Title
		}
	}

	if err := o.notifier.NotifyPositiveReply(ctx, lead.Summary, reply.Text, senderUsername, channelTitle); err != nil {
		return err
	}

	now := o.now().UTC()
	lead.Status = database.LeadStatusForwarded
	lead.ForwardedAt = &now
	if err := o.leads.Update(lead); err != nil {
		return err
	}

	slog.Info("Lead forwarded to operator", "lead_id", lead.ID)

	return nil
}
