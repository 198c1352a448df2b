package bindings

import (
	"context"

	"github.com/dkovalov/filegate/internal/server/models"
)

// Repository is the device-binding ledger: one fingerprint per user,
// trust-on-first-use.
type Repository interface {
	// Bind records the fingerprint for userID if the user has no binding yet
	// and returns the canonical binding either way. The storage layer makes
	// this race-free: of two concurrent first binds exactly one wins, and
	// both callers observe the winner.
	Bind(ctx context.Context, userID int64, fingerprint string) (*models.DeviceBinding, error)

	// Get returns the current binding or common.ErrNotFound.
	Get(ctx context.Context, userID int64) (*models.DeviceBinding, error)

	// Delete removes the binding, re-enabling first-use bind. The bool
	// reports whether a binding actually existed.
	Delete(ctx context.Context, userID int64) (bool, error)
}
