package telegram

import (
	"context"
	"fmt"
	"time"
)

// IncomingMessage is a channel post picked up by the collector.
type IncomingMessage struct {
	TelegramMsgID  int64     `json:"telegram_msg_id"`
	ChatID         int64     `json:"chat_id"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Text           string    `json:"text"`
	Date           time.Time `json:"date"`
}

// Update is a single event from the gateway's long-poll stream. Private
// updates are direct messages to our account, everything else is a channel post.
type Update struct {
	Message IncomingMessage `json:"message"`
	Private bool            `json:"private"`
}

// HistoryMessage is a message fetched from a channel's history.
type HistoryMessage struct {
	TelegramMsgID    int64     `json:"telegram_msg_id"`
	SenderID         int64     `json:"sender_id"`
	SenderUsername   string    `json:"sender_username"`
	Text             string    `json:"text"`
	Date             time.Time `json:"date"`
	FwdFromChannelID int64     `json:"fwd_from_channel_id"`
}

// ChannelInfo describes a channel as seen by the gateway.
type ChannelInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Title     string `json:"title"`
	About     string `json:"about"`
	Broadcast bool   `json:"broadcast"`
}

// UserInfo identifies the userbot account itself.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// SendRequest carries one outreach attempt: a reply in the order's thread
// plus an optional DM to the author.
type SendRequest struct {
	ChatID       int64  `json:"chat_id"`
	ReplyToMsgID int64  `json:"reply_to_msg_id"`
	ThreadText   string `json:"thread_text"`
	UserID       int64  `json:"user_id,omitempty"`
	DMText       string `json:"dm_text,omitempty"`
}

// SendResult reports what was actually delivered. A zero message id means
// that leg was skipped (write forbidden, privacy restricted). PeerFlood set
// means the account is hard-throttled and outreach must stop.
type SendResult struct {
	ThreadMsgID int64 `json:"thread_msg_id"`
	DMMsgID     int64 `json:"dm_msg_id"`
	PeerFlood   bool  `json:"peer_flood"`
}

// FloodError is a transient throttle with a server-mandated wait.
type FloodError struct {
	Wait time.Duration
}

func (e *FloodError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

// Client is the transport to the userbot gateway process.
type Client interface {
	Updates(ctx context.Context) ([]Update, error)
	History(ctx context.Context, chatID int64, limit int) ([]HistoryMessage, error)
	ThreadReplies(ctx context.Context, chatID, msgID int64, limit int) ([]HistoryMessage, error)
	SearchChannels(ctx context.Context, query string, limit int) ([]ChannelInfo, error)
	GetChannelInfo(ctx context.Context, chatID int64) (*ChannelInfo, error)
	Resolve(ctx context.Context, username string) (*ChannelInfo, error)
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	Me(ctx context.Context) (*UserInfo, error)
}
