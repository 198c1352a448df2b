package common

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionTokenBytes is the entropy of a session token. 32 bytes gives 256
// bits, which makes tokens unguessable for the token-is-the-key lookup model.
const SessionTokenBytes = 32

// MakeSessionToken generates an opaque URL-safe bearer token with
// SessionTokenBytes of entropy. The encoded form is 43 characters of the
// base64url alphabet with no padding.
func MakeSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
