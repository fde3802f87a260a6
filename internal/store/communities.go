package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CommunityExists reports whether a community id names a real community.
// Community conversations have no creation step: the community id itself is
// the conversation id.
func (s *Store) CommunityExists(ctx context.Context, communityID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM communities WHERE id = $1)`,
		communityID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check community: %w", err)
	}
	return exists, nil
}

// IsCommunityMember reports whether the user has joined the community.
func (s *Store) IsCommunityMember(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	var member bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM community_members
			WHERE community_id = $1 AND user_id = $2
		)`,
		communityID, userID,
	).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return member, nil
}
