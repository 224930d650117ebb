package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type messageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Insert(msg Message) (int64, bool, error) {
	res, err := r.db.Exec(`
		INSERT INTO messages (telegram_msg_id, channel_id, sender_id, sender_username, text, date, text_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.TelegramMsgID, msg.ChannelID, nullInt64(msg.SenderID), nullString(msg.SenderUsername),
		msg.Text, formatTime(msg.Date), msg.TextHash)
	if err != nil {
		// Re-ingestion of a (channel, telegram_msg_id) pair is expected
		// and not an error.
		if isUniqueViolation(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read message id: %w", err)
	}
	return id, true, nil
}

func (r *messageRepository) Get(id int64) (*Message, error) {
	var msg Message
	var senderID sql.NullInt64
	var date string
	err := r.db.QueryRow(`
		SELECT id, telegram_msg_id, channel_id, sender_id, COALESCE(sender_username, ''),
		       COALESCE(text, ''), COALESCE(date, ''), COALESCE(text_hash, '')
		FROM messages WHERE id = ?
	`, id).Scan(&msg.ID, &msg.TelegramMsgID, &msg.ChannelID, &senderID,
		&msg.SenderUsername, &msg.Text, &date, &msg.TextHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	msg.SenderID = senderID.Int64
	msg.Date = parseTime(date)
	return &msg, nil
}

func (r *messageRepository) HasLeadWithTextHash(textHash string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM leads l
		JOIN messages m ON l.message_id = m.id
		WHERE m.text_hash = ?
		LIMIT 1
	`, textHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check text hash: %w", err)
	}
	return true, nil
}

func (r *messageRepository) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (r *messageRepository) CountSince(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM messages WHERE date >= ?", formatTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent messages: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
