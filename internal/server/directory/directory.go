// Package directory defines the external collaborators the core depends on:
// the user directory that owns identities and passwords, and the live
// group-membership store. Both are owned by the hosting forum; the core only
// consumes them through these interfaces so the invariants
// (grant-implies-membership, expiry-implies-removal) stay testable with
// in-memory fakes.
package directory

import "context"

// CredentialDirectory verifies a username-or-email plus password against the
// external user store.
type CredentialDirectory interface {
	// Verify returns the user's ID on success, common.ErrAuthFailed on bad
	// credentials or unknown identifier.
	Verify(ctx context.Context, identifier, password string) (int64, error)
}

// GroupMembership is the live group-membership store. Grants materialize
// into it on creation and are reconciled out of it by the expiry sweep.
type GroupMembership interface {
	// Add puts the user into the group. Adding an existing membership is a
	// no-op.
	Add(ctx context.Context, userID, groupID int64) error

	// Remove takes the user out of every listed group in one call.
	Remove(ctx context.Context, userID int64, groupIDs []int64) error

	// ListGroupIDs returns the user's current group set.
	ListGroupIDs(ctx context.Context, userID int64) ([]int64, error)
}
