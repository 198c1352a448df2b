package services

// AuthSource is the variant identity carried by a download or listing
// request: either a bearer session token or an identity the hosting
// application already authenticated (its own logged-in session). It is
// resolved to a user ID before any permission check so business logic never
// branches on transport details.
type AuthSource struct {
	kind   authKind
	token  string
	userID int64
}

type authKind int

const (
	authNone authKind = iota
	authToken
	authAmbient
)

// TokenAuth identifies the caller by a session token.
func TokenAuth(token string) AuthSource {
	return AuthSource{kind: authToken, token: token}
}

// AmbientAuth identifies a caller the surrounding application has already
// authenticated.
func AmbientAuth(userID int64) AuthSource {
	return AuthSource{kind: authAmbient, userID: userID}
}

// Anonymous is the zero AuthSource: no identity at all.
func Anonymous() AuthSource {
	return AuthSource{kind: authNone}
}
