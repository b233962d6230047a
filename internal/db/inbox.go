package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
)

// InboxMessage is one notification kept for the guardian to read later.
type InboxMessage struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	TimestampMs int64  `json:"timestamp"`
	IsRead      bool   `json:"isRead"`
}

// Notify stores n in the subject's inbox. It satisfies alert.Notifier.
func (db *DB) Notify(ctx context.Context, n alert.Notification) error {
	id := n.AlertID
	if id == "" {
		id = uuid.NewString()
	}
	ts := n.EmittedAtMs
	if ts == 0 {
		ts = db.nowMs()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO inbox (message_id, subject_id, title, message, timestamp, is_read)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(message_id) DO NOTHING
	`, id, n.SubjectID, n.Title, n.Body, ts)
	if err != nil {
		return fmt.Errorf("failed to store inbox message: %w", err)
	}
	return nil
}

// Inbox returns up to limit messages of a subject, newest first.
func (db *DB) Inbox(ctx context.Context, subjectID string, unreadOnly bool, limit int) ([]InboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT message_id, subject_id, title, message, timestamp, is_read
		FROM inbox
		WHERE subject_id = ? AND (? = 0 OR is_read = 0)
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, subjectID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inbox: %w", err)
	}
	defer rows.Close()

	var msgs []InboxMessage
	for rows.Next() {
		var (
			m    InboxMessage
			read int
		)
		if err := rows.Scan(&m.ID, &m.SubjectID, &m.Title, &m.Message, &m.TimestampMs, &read); err != nil {
			return nil, err
		}
		m.IsRead = read != 0
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flags one inbox message as read.
func (db *DB) MarkRead(ctx context.Context, subjectID, messageID string) error {
	res, err := db.ExecContext(ctx, `UPDATE inbox SET is_read = 1 WHERE subject_id = ? AND message_id = ?`, subjectID, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("inbox message %s: %w", messageID, ErrNotFound)
	}
	return nil
}
