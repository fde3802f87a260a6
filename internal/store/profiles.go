package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Profile carries the display attributes the presenter needs for an author.
// Avatar images live in external object storage; only the URL is stored here.
type Profile struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	AvatarURL string
}

// GetProfiles fetches display profiles for a batch of user ids. Users without
// a profile row are simply absent from the result.
func (s *Store) GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Profile, error) {
	out := make(map[uuid.UUID]Profile)
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(avatar_url, '')
		FROM profiles
		WHERE user_id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}
