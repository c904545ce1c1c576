package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const messageColumns = "id, sender_id, receiver_id, text, image, seen, created_at"

// InsertMessage stores a new message.
func (db *DB) InsertMessage(ctx context.Context, m *Message) error {
	prepareMessage(m)
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.Image, m.Seen, toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage returns a single message by id.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	row := db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// FindByParticipants returns the conversation between a and b in insertion order.
func (db *DB) FindByParticipants(ctx context.Context, a, b string) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY seq ASC`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MarkManySeen marks every unseen message from sender to receiver as seen.
func (db *DB) MarkManySeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE messages SET seen = 1
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0`, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return res.RowsAffected()
}

// MarkOneSeen marks a single message as seen. Repeating it is a no-op.
func (db *DB) MarkOneSeen(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `UPDATE messages SET seen = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark message seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnseen counts unseen messages from sender to receiver.
func (db *DB) CountUnseen(ctx context.Context, senderID, receiverID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0`, senderID, receiverID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	return n, nil
}

// UnseenBySender groups the receiver's unseen messages by sender.
func (db *DB) UnseenBySender(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = ? AND seen = 0
		GROUP BY sender_id`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("unseen by sender: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unseen: %w", err)
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*Message, error) {
	var m Message
	var createdAt int64
	if err := s.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.Seen, &createdAt); err != nil {
		return nil, err
	}
	m.CreatedAt = fromMillis(createdAt)
	return &m, nil
}
