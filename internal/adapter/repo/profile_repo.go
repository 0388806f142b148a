package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carecast/internal/domain"
)

// ProfileRepositoryPG resolves avatar credentials from the doctor_profiles
// table. Accounts without an active profile cannot submit generation jobs.
type ProfileRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a profile provider backed by PostgreSQL.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{pool: pool}
}

// GetActiveAvatarCredentials returns the active avatar/voice pair for the owner.
func (r *ProfileRepositoryPG) GetActiveAvatarCredentials(ctx context.Context, ownerID string) (*domain.AvatarCredentials, error) {
	query := `
SELECT avatar_id, voice_id
FROM doctor_profiles
WHERE owner_id = $1
  AND active = TRUE;
`
	row := r.pool.QueryRow(ctx, query, ownerID)
	var creds domain.AvatarCredentials
	if err := row.Scan(&creds.AvatarID, &creds.VoiceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotConfigured
		}
		return nil, fmt.Errorf("load avatar credentials: %w", err)
	}
	if creds.AvatarID == "" || creds.VoiceID == "" {
		return nil, domain.ErrNotConfigured
	}
	return &creds, nil
}

var _ domain.ProfileProvider = (*ProfileRepositoryPG)(nil)
