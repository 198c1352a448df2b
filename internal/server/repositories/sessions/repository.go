package sessions

import (
	"context"
	"time"

	"github.com/dkovalov/filegate/internal/server/models"
)

// Repository persists session tokens keyed by the token value itself.
type Repository interface {
	// Create inserts a new session. A primary-key collision surfaces as
	// common.ErrDuplicate so the caller can regenerate and retry.
	Create(ctx context.Context, session *models.Session) error

	// Find returns the session for token if it exists and has not expired
	// at the given instant; otherwise common.ErrNotFound.
	Find(ctx context.Context, token string, now time.Time) (*models.Session, error)

	// Delete revokes a single token. The bool reports whether it existed.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteExpired removes every session with expires_at <= now in one
	// statement and returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
