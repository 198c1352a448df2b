package files

import (
	"context"

	"github.com/dkovalov/filegate/internal/server/models"
)

// Repository persists file records. The blob payload lives in object
// storage; only the metadata and access policy are stored here.
type Repository interface {
	// Create inserts a record and fills in its generated ID.
	Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error)

	// Get returns the record for id or common.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.FileRecord, error)

	// List returns all records (management listing; filtering is the access
	// engine's job).
	List(ctx context.Context) ([]*models.FileRecord, error)

	// UpdatePolicy patches visibility. Nil isPublic / nil allowedGroups
	// leave the corresponding column unchanged.
	UpdatePolicy(ctx context.Context, id int64, isPublic *bool, allowedGroups []int64) error

	// Delete removes the record. The bool reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)
}
