package pipeline

import (
	"context"
	"log/slog"

	"leadflow/app/database"
	"leadflow/app/dedup"
	"leadflow/app/telegram"
)

// intakeLoop drains the collector queue into the database and turns relevant
// orders into leads.
func (o *Orchestrator) intakeLoop(ctx context.Context) error {
	slog.Info("Intake loop started")

	for {
		incoming, err := o.queue.Pop(ctx)
		if err != nil {
			return err
		}
		if err := o.processMessage(ctx, incoming); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to process message", "msg_id", incoming.TelegramMsgID, "error", err)
		}
	}
}

// processMessage persists an incoming message and classifies it. Every early
// return is a deliberate drop: unknown channel, duplicate, non-order, or
// below the relevance threshold.
func (o *Orchestrator) processMessage(ctx context.Context, incoming telegram.IncomingMessage) error {
	channel, err := o.channels.GetByTelegramID(incoming.ChatID)
	if err != nil {
		return err
	}
	if channel == nil {
		slog.Warn("Message from unknown channel, skipping", "chat_id", incoming.ChatID)
		return nil
	}

	textHash := dedup.Hash(incoming.Text)

	msgID, inserted, err := o.messages.Insert(database.Message{
		TelegramMsgID:  incoming.TelegramMsgID,
		ChannelID:      channel.ID,
		SenderID:       incoming.SenderID,
		SenderUsername: incoming.SenderUsername,
		Text:           incoming.Text,
		Date:           incoming.Date,
		TextHash:       textHash,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	// Cross-channel dedup: the same order text reposted elsewhere must not
	// produce a second lead.
	hasLead, err := o.messages.HasLeadWithTextHash(textHash)
	if err != nil {
		return err
	}
	if hasLead {
		slog.Debug("Duplicate order text, skipping lead", "hash", textHash[:12])
		return nil
	}

	result, err := o.llm.Classify(ctx, incoming.Text, o.config.TargetStacks)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	if result.RelevanceScore < o.config.MinRelevance {
		slog.Debug("Low relevance, skipping", "score", result.RelevanceScore)
		return nil
	}

	leadID, err := o.leads.Insert(database.Lead{
		MessageID:      msgID,
		Status:         database.LeadStatusNew,
		RelevanceScore: result.RelevanceScore,
		Budget:         result.Budget,
		Stack:          result.Stack,
		Deadline:       result.Deadline,
		Language:       result.Language,
		Summary:        result.Summary,
	})
	if err != nil {
		return err
	}

	slog.Info("Created lead", "lead_id", leadID, "score", result.RelevanceScore, "language", result.Language)

	return nil
}
