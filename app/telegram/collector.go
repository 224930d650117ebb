package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PrivateHandler receives direct messages to our account, which may be
// replies to outreach DMs.
type PrivateHandler func(ctx context.Context, msg IncomingMessage)

// Collector pulls updates from the gateway and routes channel posts from
// monitored channels into the intake queue. Private messages go to the
// registered handler instead.
type Collector struct {
	client Client
	queue  *Queue

	mu        sync.Mutex
	monitored map[int64]struct{}
	onPrivate PrivateHandler
}

func NewCollector(client Client, queue *Queue) *Collector {
	return &Collector{
		client:    client,
		queue:     queue,
		monitored: make(map[int64]struct{}),
	}
}

// Subscribe replaces the monitored set wholesale.
func (c *Collector) Subscribe(chatIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.monitored = make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		c.monitored[id] = struct{}{}
	}

	slog.Info("Collector subscribed to channels", "count", len(chatIDs))
}

// Add hot-subscribes a channel at runtime.
func (c *Collector) Add(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.monitored[chatID]; ok {
		return
	}
	c.monitored[chatID] = struct{}{}

	slog.Info("Hot-subscribed to channel", "chat_id", chatID, "total", len(c.monitored))
}

// Remove stops monitoring a channel at runtime.
func (c *Collector) Remove(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.monitored, chatID)

	slog.Info("Unsubscribed from channel", "chat_id", chatID, "total", len(c.monitored))
}

func (c *Collector) MonitoredCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.monitored)
}

func (c *Collector) isMonitored(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.monitored[chatID]
	return ok
}

// OnPrivateMessage registers the handler for incoming DMs.
func (c *Collector) OnPrivateMessage(handler PrivateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onPrivate = handler
}

// Backfill fetches recent history from a channel and pushes it through the
// same intake path as live updates.
func (c *Collector) Backfill(ctx context.Context, chatID int64, limit int) error {
	messages, err := c.client.History(ctx, chatID, limit)
	if err != nil {
		return err
	}

	queued := 0
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		incoming := IncomingMessage{
			TelegramMsgID:  msg.TelegramMsgID,
			ChatID:         chatID,
			SenderID:       msg.SenderID,
			SenderUsername: msg.SenderUsername,
			Text:           msg.Text,
			Date:           msg.Date,
		}
		c.queue.Push(incoming)
		queued++
	}

	slog.Info("Backfilled channel history", "chat_id", chatID, "queued", queued)

	return nil
}

// Run polls the gateway for updates until the context is cancelled. Gateway
// errors are logged and retried after a short pause.
func (c *Collector) Run(ctx context.Context) error {
	for {
		updates, err := c.client.Updates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to fetch updates", "error", err)
			if err := sleepCtx(ctx, 5*time.Second); err != nil {
				return err
			}
			continue
		}

		for _, update := range updates {
			if update.Message.Text == "" {
				continue
			}
			c.dispatch(ctx, update)
		}
	}
}

func (c *Collector) dispatch(ctx context.Context, update Update) {
	if update.Private {
		c.mu.Lock()
		handler := c.onPrivate
		c.mu.Unlock()

		if handler != nil {
			handler(ctx, update.Message)
		}
		return
	}

	if !c.isMonitored(update.Message.ChatID) {
		return
	}

	c.queue.Push(update.Message)
	slog.Debug("Queued message", "chat_id", update.Message.ChatID, "msg_id", update.Message.TelegramMsgID)
}
