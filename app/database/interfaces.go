package database

import (
	"time"
)

type ChannelRepository interface {
	Upsert(ch Channel) (int64, error)
	Get(id int64) (*Channel, error)
	GetByTelegramID(telegramID int64) (*Channel, error)
	GetActive() ([]Channel, error)
	CountActive() (int, error)
	CountInactive() (int, error)
	Deactivate(id int64) error
	// GetDead returns active channels discovered more than minAge ago that
	// have never produced a lead.
	GetDead(minAge time.Duration) ([]Channel, error)
}

type MessageRepository interface {
	// Insert stores a message. A (channel, telegram_msg_id) duplicate is
	// reported as inserted=false with no error.
	Insert(msg Message) (id int64, inserted bool, err error)
	Get(id int64) (*Message, error)
	HasLeadWithTextHash(textHash string) (bool, error)
	CountAll() (int, error)
	CountSince(since time.Time) (int, error)
}

type LeadRepository interface {
	Insert(lead Lead) (int64, error)
	Get(id int64) (*Lead, error)
	Update(lead Lead) error
	GetByStatus(status string) ([]Lead, error)
	// GetStale returns contacted leads whose contacted_at is older than ttl.
	GetStale(ttl time.Duration) ([]Lead, error)
	GetRecent(limit int) ([]Lead, error)
	StatusCounts() (map[string]int, error)
	CountAll() (int, error)

	InsertReply(reply Reply) (int64, error)
	GetReplies(leadID int64) ([]Reply, error)
}

type BudgetRepository interface {
	// GetOrCreate returns today's budget row, creating it sized to maxSends
	// if the date has rolled over.
	GetOrCreate(maxSends int) (DailyBudget, error)
	// IncrementSends bumps today's counter only while it is below the
	// ceiling and reports whether the increment was applied.
	IncrementSends() (bool, error)
	GetToday() (*DailyBudget, error)
}
