package store

import (
	"context"
	"time"
)

// QueueOutbox records a compose action before it is sent.
func (db *DB) QueueOutbox(ctx context.Context, e *OutboxEntry) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO outbox (client_msg_id, contact_id, recipients, body, attachments, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'queued', ?, ?)`,
		e.ClientMsgID, e.ContactID, e.Recipients, e.Body, e.Attachments, now, now)
	return err
}

// MarkOutboxSent marks an entry sent and records how many recipients got it.
func (db *DB) MarkOutboxSent(ctx context.Context, clientMsgID string, recipients int) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE outbox SET status = 'sent', recipients = ?, error_message = '', updated_at = ?
		WHERE client_msg_id = ?`,
		recipients, now, clientMsgID)
	return err
}

// MarkOutboxFailed marks an entry failed with an error message.
func (db *DB) MarkOutboxFailed(ctx context.Context, clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// ListOutbox returns the newest entries, optionally filtered by status.
func (db *DB) ListOutbox(ctx context.Context, status string, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, client_msg_id, contact_id, recipients, body, attachments, status, error_message, created_at, updated_at
		FROM outbox
		WHERE ? = '' OR status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		status, status, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ContactID, &e.Recipients, &e.Body, &e.Attachments,
			&e.Status, &e.ErrorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OutboxCounts returns the number of entries per status.
func (db *DB) OutboxCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
