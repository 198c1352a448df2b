package models

import "time"

// Session is an opaque bearer credential. The token value itself is the
// primary key; there is no separate ID.
type Session struct {
	Token     string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
