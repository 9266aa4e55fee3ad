package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

// AccessTokenTTL is the lifetime of issued access tokens.
const AccessTokenTTL = 8 * time.Hour

// placeholderSecret is the well-known default that must never reach
// production.
const placeholderSecret = "changeme"

// IsProduction reports whether the environment flag names a production
// deployment.
func IsProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

// InsecureSecret reports whether a signing secret is unset or still the
// placeholder default.
func InsecureSecret(secret string) bool {
	return secret == "" || secret == placeholderSecret
}

// ErrInvalidCredentials is returned for unknown users, blocked users, and
// password mismatches alike; login responses never reveal which factor
// failed. Blocked accounts are distinguished separately via IsUserBlocked.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Authenticator verifies credentials and issues access tokens.
type Authenticator struct {
	users  UserStore
	secret string
}

// NewAuthenticator constructs the authenticator. In production an unset or
// placeholder access-token secret is a fatal configuration error.
func NewAuthenticator(users UserStore, secret, env string) (*Authenticator, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if IsProduction(env) && InsecureSecret(secret) {
		return nil, ErrInsecureSecret
	}
	return &Authenticator{users: users, secret: secret}, nil
}

// Login verifies the credentials and returns a signed access token carrying
// the account's identity claims. Unknown user, blocked user, and wrong
// password all yield ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if user.Blocked() {
		return "", ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.IssueToken(user)
}

// IssueToken signs an access token for an already-verified account.
func (a *Authenticator) IssueToken(user *User) (string, error) {
	claims := map[string]any{
		"sub":        user.ID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"profile_id": user.ProfileID,
	}
	return EncodeToken(claims, a.secret, AccessTokenTTL)
}

// VerifyToken validates an access token and returns its claims.
func (a *Authenticator) VerifyToken(token string) (map[string]any, error) {
	return DecodeToken(token, a.secret)
}

// IsUserBlocked reports whether the user exists and is blocked. Callers use
// it before Login to map blocked accounts to a distinct error outcome.
func (a *Authenticator) IsUserBlocked(ctx context.Context, username string) (bool, error) {
	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Blocked(), nil
}

// SubjectID extracts the numeric subject from verified claims. JSON numbers
// decode as float64; tokens minted by this service always carry a numeric
// subject.
func SubjectID(claims map[string]any) (int64, bool) {
	switch v := claims["sub"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
