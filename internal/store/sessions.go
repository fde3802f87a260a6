package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SupportSession is an anonymous visitor's support conversation. The session
// id doubles as the conversation id for its message log.
type SupportSession struct {
	ID           uuid.UUID
	VisitorID    uuid.UUID
	VisitorName  string
	VisitorEmail string
	CreatedAt    time.Time
}

// CreateSupportSession opens a new support session bound to a visitor id.
func (s *Store) CreateSupportSession(ctx context.Context, visitorID uuid.UUID, name, email string) (*SupportSession, error) {
	sess := SupportSession{
		ID:           uuid.New(),
		VisitorID:    visitorID,
		VisitorName:  name,
		VisitorEmail: email,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, visitor_id, visitor_name, visitor_email, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), now())
		RETURNING created_at`,
		sess.ID, sess.VisitorID, sess.VisitorName, sess.VisitorEmail,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat session: %w", err)
	}
	return &sess, nil
}

// GetSupportSession fetches a session by id. Returns ErrNotFound if absent.
func (s *Store) GetSupportSession(ctx context.Context, id uuid.UUID) (*SupportSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, visitor_id, visitor_name, COALESCE(visitor_email, ''), created_at
		FROM chat_sessions
		WHERE id = $1`,
		id,
	)

	var sess SupportSession
	if err := row.Scan(&sess.ID, &sess.VisitorID, &sess.VisitorName, &sess.VisitorEmail, &sess.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}
