package identity

import "errors"

var (
	ErrMissingToken      = errors.New("identity: missing bearer token")
	ErrMalformedHeader   = errors.New("identity: malformed authorization header")
	ErrInvalidToken      = errors.New("identity: invalid token")
	ErrInvalidSubject    = errors.New("identity: token subject is not a user id")
	ErrNotConfigured     = errors.New("identity: set SUPABASE_JWT_SECRET or SUPABASE_URL with SUPABASE_ANON_KEY")
	ErrRemoteUnavailable = errors.New("identity: auth server unavailable")
)
