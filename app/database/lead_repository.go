package database

import (
	"database/sql"
	"fmt"
	"time"
)

type leadRepository struct {
	db *DB
}

func NewLeadRepository(db *DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) Insert(lead Lead) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO leads (message_id, status, relevance_score, budget, stack, deadline, language, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.MessageID, lead.Status, lead.RelevanceScore, nullString(lead.Budget),
		nullString(lead.Stack), nullString(lead.Deadline), nullString(lead.Language),
		nullString(lead.Summary))
	if err != nil {
		return 0, fmt.Errorf("failed to insert lead: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read lead id: %w", err)
	}
	return id, nil
}

func (r *leadRepository) Update(lead Lead) error {
	_, err := r.db.Exec(`
		UPDATE leads SET
			status = ?, relevance_score = ?, budget = ?, stack = ?,
			deadline = ?, language = ?, summary = ?,
			outreach_text = ?, dm_text = ?,
			outreach_msg_id = ?, dm_msg_id = ?,
			contacted_at = ?, replied_at = ?, forwarded_at = ?
		WHERE id = ?
	`, lead.Status, lead.RelevanceScore, nullString(lead.Budget), nullString(lead.Stack),
		nullString(lead.Deadline), nullString(lead.Language), nullString(lead.Summary),
		nullString(lead.OutreachText), nullString(lead.DMText),
		nullInt64(lead.OutreachMsgID), nullInt64(lead.DMMsgID),
		formatTimePtr(lead.ContactedAt), formatTimePtr(lead.RepliedAt), formatTimePtr(lead.ForwardedAt),
		lead.ID)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

func (r *leadRepository) Get(id int64) (*Lead, error) {
	lead, err := scanLead(r.db.QueryRow(leadSelect+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

func (r *leadRepository) GetByStatus(status string) ([]Lead, error) {
	rows, err := r.db.Query(leadSelect+" WHERE status = ? ORDER BY id", status)
	if err != nil {
		return nil, fmt.Errorf("failed to get leads by status: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (r *leadRepository) GetStale(ttl time.Duration) ([]Lead, error) {
	cutoff := formatTime(time.Now().UTC().Add(-ttl))
	rows, err := r.db.Query(leadSelect+`
		WHERE status = 'contacted'
		  AND contacted_at IS NOT NULL
		  AND contacted_at < ?
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (r *leadRepository) GetRecent(limit int) ([]Lead, error) {
	rows, err := r.db.Query(leadSelect+" ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (r *leadRepository) StatusCounts() (map[string]int, error) {
	rows, err := r.db.Query("SELECT status, COUNT(*) FROM leads GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

func (r *leadRepository) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM leads").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

func (r *leadRepository) InsertReply(reply Reply) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO replies (lead_id, telegram_msg_id, sender_id, text, sentiment, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, reply.LeadID, nullInt64(reply.TelegramMsgID), nullInt64(reply.SenderID),
		nullString(reply.Text), nullString(reply.Sentiment), formatTime(reply.ReceivedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert reply: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read reply id: %w", err)
	}
	return id, nil
}

func (r *leadRepository) GetReplies(leadID int64) ([]Reply, error) {
	rows, err := r.db.Query(`
		SELECT id, lead_id, telegram_msg_id, sender_id, COALESCE(text, ''),
		       COALESCE(sentiment, ''), COALESCE(received_at, '')
		FROM replies WHERE lead_id = ? ORDER BY id
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get replies: %w", err)
	}
	defer rows.Close()

	var replies []Reply
	for rows.Next() {
		var reply Reply
		var msgID, senderID sql.NullInt64
		var receivedAt string
		err := rows.Scan(&reply.ID, &reply.LeadID, &msgID, &senderID,
			&reply.Text, &reply.Sentiment, &receivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply row: %w", err)
		}
		reply.TelegramMsgID = msgID.Int64
		reply.SenderID = senderID.Int64
		reply.ReceivedAt = parseTime(receivedAt)
		replies = append(replies, reply)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reply rows: %w", err)
	}
	return replies, nil
}

const leadSelect = `
	SELECT id, message_id, status, COALESCE(relevance_score, 0),
	       COALESCE(budget, ''), COALESCE(stack, ''), COALESCE(deadline, ''),
	       COALESCE(language, ''), COALESCE(summary, ''),
	       COALESCE(outreach_text, ''), COALESCE(dm_text, ''),
	       outreach_msg_id, dm_msg_id,
	       contacted_at, replied_at, forwarded_at
	FROM leads`

func scanLead(row rowScanner) (*Lead, error) {
	var lead Lead
	var outreachMsgID, dmMsgID sql.NullInt64
	var contactedAt, repliedAt, forwardedAt sql.NullString
	err := row.Scan(&lead.ID, &lead.MessageID, &lead.Status, &lead.RelevanceScore,
		&lead.Budget, &lead.Stack, &lead.Deadline, &lead.Language, &lead.Summary,
		&lead.OutreachText, &lead.DMText, &outreachMsgID, &dmMsgID,
		&contactedAt, &repliedAt, &forwardedAt)
	if err != nil {
		return nil, err
	}
	lead.OutreachMsgID = outreachMsgID.Int64
	lead.DMMsgID = dmMsgID.Int64
	lead.ContactedAt = parseTimePtr(contactedAt)
	lead.RepliedAt = parseTimePtr(repliedAt)
	lead.ForwardedAt = parseTimePtr(forwardedAt)
	return &lead, nil
}

func scanLeads(rows *sql.Rows) ([]Lead, error) {
	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lead rows: %w", err)
	}
	return leads, nil
}
