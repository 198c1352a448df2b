package models

import "time"

// RoleGrant is a time-bounded or permanent addition of a user to a permission
// group. One row exists per (UserID, GroupID); a nil ExpiresAt means a
// lifetime grant.
type RoleGrant struct {
	UserID    int64
	GroupID   int64
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt reports whether the grant has run out at the given time.
// Lifetime grants never expire.
func (g *RoleGrant) ExpiredAt(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}
