package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neuropayx/parley/internal/chat"
)

// DirectConversation is the durable record for a consultant<->user pair.
// At most one usable row exists per pair.
type DirectConversation struct {
	ID           uuid.UUID
	ConsultantID uuid.UUID
	UserID       uuid.UUID
	CreatedAt    time.Time
}

// FindDirectConversation looks up the conversation for a pair.
// Returns ErrNotFound when the pair has never talked.
func (s *Store) FindDirectConversation(ctx context.Context, consultantID, userID uuid.UUID) (*DirectConversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, consultant_id, user_id, created_at
		FROM conversations
		WHERE consultant_id = $1 AND user_id = $2`,
		consultantID, userID,
	)

	var c DirectConversation
	if err := row.Scan(&c.ID, &c.ConsultantID, &c.UserID, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// GetOrCreateDirectConversation resolves the conversation for a pair, creating
// it lazily on first contact. The unique (consultant_id, user_id) constraint
// makes concurrent callers converge on a single row: the losing insert is a
// no-op and the follow-up select returns the winner's id.
func (s *Store) GetOrCreateDirectConversation(ctx context.Context, consultantID, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, kind, consultant_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (consultant_id, user_id) DO NOTHING
		RETURNING id`,
		uuid.New(), chat.KindDirect, consultantID, userID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("insert conversation: %w", err)
	}

	existing, err := s.FindDirectConversation(ctx, consultantID, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup conversation after conflict: %w", err)
	}
	return existing.ID, nil
}

// ListUserConversations returns all direct conversations a user participates
// in, most recent first.
func (s *Store) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]DirectConversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, consultant_id, user_id, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []DirectConversation
	for rows.Next() {
		var c DirectConversation
		if err := rows.Scan(&c.ID, &c.ConsultantID, &c.UserID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
