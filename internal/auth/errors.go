package auth

import "errors"

var (
	ErrNotFound          = errors.New("auth: not found")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrDuplicateUsername = errors.New("auth: username already exists")

	// ErrInsecureSecret is returned by constructors when the service would
	// start in production with a missing or placeholder signing secret.
	ErrInsecureSecret = errors.New("auth: signing secret is not configured for production")
)
