package auth

import "time"

const (
	// UserStateActive marks an account that may authenticate.
	UserStateActive = 1
	// UserStateBlocked marks an account that is refused login and is reported
	// to callers as blocked rather than unknown.
	UserStateBlocked = 0
)

// User is an account row. PasswordHash is only populated by lookups that
// need credential verification and is never serialized.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ProfileID    int64  `json:"profile_id"`
	Theme        string `json:"theme"`
	Username     string `json:"username"`
	State        int    `json:"state"`
	PasswordHash string `json:"-"`
}

// Blocked reports whether the account is administratively blocked.
func (u *User) Blocked() bool {
	return u != nil && u.State == UserStateBlocked
}

// Profile is a named permission bundle assigned to users. Permissions holds
// the raw serialized map as stored; decode with DecodePermissions.
type Profile struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"-"`
}

// UserWithProfile is the view the authorization layer works with: the account
// joined with its profile name and the decoded permission map. Permissions is
// nil when the profile defines none.
type UserWithProfile struct {
	User
	ProfileName string         `json:"profile_name"`
	Permissions map[string]int `json:"profile_permissions"`
}

// Session is a refresh-token grant. TokenHash is the keyed hash of the
// refresh token under the secret version recorded in SecretVersion; the
// plaintext is never stored.
type Session struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	TokenHash     string    `json:"-"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Revoked       bool      `json:"revoked"`
	SecretVersion int       `json:"secret_version"`
}

// Expired reports whether the session's refresh window has passed.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && s.ExpiresAt.Before(now)
}
