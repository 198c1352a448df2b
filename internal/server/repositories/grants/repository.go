package grants

import (
	"context"
	"time"

	"github.com/dkovalov/filegate/internal/server/models"
)

// Repository persists role grants keyed by (user_id, group_id).
type Repository interface {
	// Upsert inserts or updates the grant for (userID, groupID) atomically
	// and reports whether a fresh row was inserted. On update only
	// expires_at and updated_at change.
	Upsert(ctx context.Context, userID, groupID int64, expiresAt *time.Time) (*models.RoleGrant, bool, error)

	// ListByUser returns a snapshot of the user's grants.
	ListByUser(ctx context.Context, userID int64) ([]*models.RoleGrant, error)

	// ListExpired returns every grant with a non-null expiry at or before
	// now.
	ListExpired(ctx context.Context, now time.Time) ([]*models.RoleGrant, error)

	// DeleteExpiredForUser removes the user's grants that have expired by
	// now and returns the group IDs of the rows actually removed. A grant
	// renewed since it was listed is skipped, so callers can act on exactly
	// the set that was deleted. Running it twice is a no-op the second time.
	DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) ([]int64, error)
}
