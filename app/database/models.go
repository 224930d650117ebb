package database

import (
	"time"
)

// Lead status values form a closed set. new and contacted are pending
// states; forwarded, negative and no_reply are terminal.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusReplied   = "replied"
	LeadStatusForwarded = "forwarded"
	LeadStatusNegative  = "negative"
	LeadStatusNoReply   = "no_reply"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentUnclear  = "unclear"
)

type Channel struct {
	ID             int64
	TelegramID     int64
	Username       string
	Title          string
	IsActive       bool
	DiscoveredFrom string // provenance tag: "search:<kw>", "forward:<id>", "description:<id>"
	DiscoveredAt   *time.Time
	CreatedAt      time.Time
}

type Message struct {
	ID             int64
	TelegramMsgID  int64
	ChannelID      int64
	SenderID       int64
	SenderUsername string
	Text           string
	Date           time.Time
	TextHash       string
}

type Lead struct {
	ID             int64
	MessageID      int64
	Status         string
	RelevanceScore float64
	Budget         string
	Stack          string
	Deadline       string
	Language       string
	Summary        string
	OutreachText   string
	DMText         string
	OutreachMsgID  int64
	DMMsgID        int64
	ContactedAt    *time.Time
	RepliedAt      *time.Time
	ForwardedAt    *time.Time
}

type Reply struct {
	ID            int64
	LeadID        int64
	TelegramMsgID int64
	SenderID      int64
	Text          string
	Sentiment     string
	ReceivedAt    time.Time
}

// DailyBudget tracks outreach sends against the warmup allowance for one
// calendar date. Rows are created lazily; a new date implies a fresh row.
type DailyBudget struct {
	Date      string // YYYY-MM-DD, UTC
	SendsUsed int
	MaxSends  int
}

func (b DailyBudget) Exhausted() bool {
	return b.SendsUsed >= b.MaxSends
}
