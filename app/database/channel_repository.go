package database

import (
	"database/sql"
	"fmt"
	"time"
)

type channelRepository struct {
	db *DB
}

func NewChannelRepository(db *DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Upsert(ch Channel) (int64, error) {
	_, err := r.db.Exec(`
		INSERT INTO channels (telegram_id, username, title, is_active, discovered_from, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			title = excluded.title,
			is_active = excluded.is_active
	`, ch.TelegramID, nullString(ch.Username), nullString(ch.Title), boolToInt(ch.IsActive),
		nullString(ch.DiscoveredFrom), formatTimePtr(ch.DiscoveredAt))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert channel: %w", err)
	}

	var id int64
	err = r.db.QueryRow("SELECT id FROM channels WHERE telegram_id = ?", ch.TelegramID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read upserted channel id: %w", err)
	}
	return id, nil
}

func (r *channelRepository) Get(id int64) (*Channel, error) {
	return r.scanOne(r.db.QueryRow(channelSelect+" WHERE id = ?", id))
}

func (r *channelRepository) GetByTelegramID(telegramID int64) (*Channel, error) {
	return r.scanOne(r.db.QueryRow(channelSelect+" WHERE telegram_id = ?", telegramID))
}

func (r *channelRepository) GetActive() ([]Channel, error) {
	rows, err := r.db.Query(channelSelect + " WHERE is_active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to get active channels: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *channelRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM channels WHERE is_active = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active channels: %w", err)
	}
	return count, nil
}

func (r *channelRepository) CountInactive() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM channels WHERE is_active = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count inactive channels: %w", err)
	}
	return count, nil
}

func (r *channelRepository) Deactivate(id int64) error {
	_, err := r.db.Exec("UPDATE channels SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate channel: %w", err)
	}
	return nil
}

func (r *channelRepository) GetDead(minAge time.Duration) ([]Channel, error) {
	cutoff := formatTime(time.Now().UTC().Add(-minAge))
	rows, err := r.db.Query(channelSelect+`
		WHERE is_active = 1
		  AND discovered_at IS NOT NULL
		  AND discovered_at < ?
		  AND NOT EXISTS (
		      SELECT 1 FROM messages m
		      JOIN leads l ON l.message_id = m.id
		      WHERE m.channel_id = channels.id
		  )
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get dead channels: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

const channelSelect = `
	SELECT id, telegram_id, COALESCE(username, ''), COALESCE(title, ''),
	       is_active, COALESCE(discovered_from, ''), discovered_at, created_at
	FROM channels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*Channel, error) {
	var ch Channel
	var active int
	var discoveredAt sql.NullString
	var createdAt string
	err := row.Scan(&ch.ID, &ch.TelegramID, &ch.Username, &ch.Title,
		&active, &ch.DiscoveredFrom, &discoveredAt, &createdAt)
	if err != nil {
		return nil, err
	}
	ch.IsActive = active != 0
	ch.DiscoveredAt = parseTimePtr(discoveredAt)
	ch.CreatedAt = parseTime(createdAt)
	return &ch, nil
}

func (r *channelRepository) scanOne(row *sql.Row) (*Channel, error) {
	ch, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan channel: %w", err)
	}
	return ch, nil
}

func (r *channelRepository) scanAll(rows *sql.Rows) ([]Channel, error) {
	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}
	return channels, nil
}
