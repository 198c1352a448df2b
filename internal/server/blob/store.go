// Package blob abstracts the byte store behind file downloads. The core
// treats it as a blob addressed by storage key; the shipped implementation
// targets any S3-compatible backend.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is the byte-addressable blob store behind file records.
type Store interface {
	// Open returns a stream of the object's bytes, or common.ErrNotFound.
	// The caller closes the stream.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// PresignGet returns a time-limited URL for downloading the object.
	PresignGet(ctx context.Context, key string) (string, error)

	// PresignPut returns a time-limited URL for uploading the object.
	PresignPut(ctx context.Context, key string) (string, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// RandomStorageKey produces a date-partitioned, collision-free object key.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("files/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}
