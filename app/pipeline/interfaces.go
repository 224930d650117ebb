package pipeline

import (
	"context"

	"leadflow/app/llm"
	"leadflow/app/telegram"
)

// Classifier is the language-model surface the pipeline consumes.
type Classifier interface {
	Classify(ctx context.Context, text string, targetStacks []string) (*llm.Classification, error)
	AnalyzeSentiment(ctx context.Context, outreachText, replyText string) (*llm.Sentiment, error)
	GenerateThreadReply(ctx context.Context, orderText, lang string) (string, error)
	GenerateDM(ctx context.Context, orderText, lang, channelTitle string) (string, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	NotifyPositiveReply(ctx context.Context, leadSummary, replyText, senderUsername, channelTitle string) error
	NotifyPeerFlood(ctx context.Context) error
	SendDailySummary(ctx context.Context, stats map[string]int) error
}

// Collector is the message-intake surface the pipeline controls at runtime.
type Collector interface {
	OnPrivateMessage(handler telegram.PrivateHandler)
	Remove(chatID int64)
	MonitoredCount() int
}

// Discoverer runs one channel-discovery pass.
type Discoverer interface {
	RunCycle(ctx context.Context) (int, error)
}
