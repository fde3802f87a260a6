package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neuropayx/parley/internal/chat"
)

// InsertMessage writes a new message and returns the authoritative record
// with the server-assigned creation timestamp.
func (s *Store) InsertMessage(ctx context.Context, conversationID uuid.UUID, senderID string, senderType chat.SenderType, body string) (chat.Message, error) {
	m := chat.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     senderType,
		Body:           body,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_type, body, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, m.SenderType, m.Body,
	).Scan(&m.CreatedAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// ListMessages returns the message backlog for a conversation, oldest first.
// An empty conversation yields an empty slice, not an error.
func (s *Store) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, sender_type, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderType, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
