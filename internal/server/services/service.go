// Package services contains the server-side business logic of filegate:
// authentication with device binding, session-token lifecycle, role-grant
// scheduling with expiry reconciliation, and permission-gated file access.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dkovalov/filegate/internal/common"
)

// storeCtx bounds a storage call so a hung database surfaces as a transient
// failure instead of a stuck request.
func storeCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// mapStoreErr converts a deadline hit into the retryable sentinel the caller
// layer expects. All other errors pass through.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.ErrTransientStore
	}
	return err
}
