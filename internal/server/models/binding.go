// Package models defines the persisted records of the filegate core: device
// bindings, session tokens, role grants, and file records.
package models

import "time"

// DeviceBinding pins a user account to a single hardware fingerprint.
// At most one binding exists per user; the first successful login fixes the
// fingerprint until an administrator resets it.
type DeviceBinding struct {
	UserID      int64
	Fingerprint string
	BoundAt     time.Time
}

// MaskedFingerprint returns the first 8 characters of the fingerprint
// followed by "...", for administrative display without exposing the full
// value.
func (b *DeviceBinding) MaskedFingerprint() string {
	const visible = 8
	if len(b.Fingerprint) <= visible {
		return b.Fingerprint
	}
	return b.Fingerprint[:visible] + "..."
}
