package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultSessionTTL is the refresh-token lifetime used when callers do not
// override it.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionStore owns the sessions table. No other component mutates session
// rows; rotation and revocation rely on single-row UPDATE semantics (zero
// rows affected means the row was already rotated or revoked), so no extra
// locking is needed for concurrent refresh attempts.
type SessionStore struct {
	db   *sql.DB
	ring *SecretRing
	now  func() time.Time
}

// NewSessionStore constructs the store. In production an unset or placeholder
// refresh secret is a fatal configuration error, surfaced here before any
// traffic is served.
func NewSessionStore(db *sql.DB, ring *SecretRing, env string) (*SessionStore, error) {
	if ring == nil {
		return nil, errors.New("auth: secret ring is required")
	}
	if IsProduction(env) && InsecureSecret(ring.currentSecret()) {
		return nil, ErrInsecureSecret
	}
	return &SessionStore{db: db, ring: ring, now: time.Now}, nil
}

// NewRefreshToken generates the opaque plaintext handed to clients.
func NewRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Create persists a new session for the user, hashing the plaintext with the
// current secret version. Returns the new session id.
func (s *SessionStore) Create(ctx context.Context, userID int64, refreshToken string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := s.now().UTC()
	hash := s.ring.HashToken(refreshToken, s.ring.Current())
	var id int64
	err := s.db.QueryRowContext(ctx,
		`insert into sessions(user_id, refresh_token, issued_at, expires_at, revoked, secret_version)
		 values($1, $2, $3, $4, false, $5) returning id`,
		userID, hash, now, now.Add(ttl), s.ring.Current(),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByToken looks up a session by refresh-token plaintext, trying the
// current secret version first and falling back through the others so that
// sessions created under a previous secret stay resolvable. Revoked sessions
// are still returned; rejecting them is the caller's decision.
func (s *SessionStore) FindByToken(ctx context.Context, refreshToken string) (*Session, error) {
	for _, version := range s.ring.Versions() {
		hash := s.ring.HashToken(refreshToken, version)
		session, err := s.findByHash(ctx, hash)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (s *SessionStore) findByHash(ctx context.Context, hash string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, refresh_token, issued_at, expires_at, revoked, secret_version
		 from sessions where refresh_token = $1`, hash)
	var session Session
	if err := row.Scan(&session.ID, &session.UserID, &session.TokenHash,
		&session.IssuedAt, &session.ExpiresAt, &session.Revoked, &session.SecretVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Revoke marks the session matching the plaintext as revoked, trying every
// known secret version and stopping at the first version whose hash matched
// a row. Returns the number of rows affected (0 or 1 in practice).
func (s *SessionStore) Revoke(ctx context.Context, refreshToken string) (int64, error) {
	for _, version := range s.ring.Versions() {
		hash := s.ring.HashToken(refreshToken, version)
		res, err := s.db.ExecContext(ctx,
			`update sessions set revoked = true where refresh_token = $1`, hash)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected > 0 {
			return affected, nil
		}
	}
	return 0, nil
}

// RevokeAllForUser revokes every active session of a user. Used when an
// account is deactivated or its password changes, to force re-authentication
// everywhere.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked = true where user_id = $1 and revoked = false`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Rotate replaces the stored hash of one session with the hash of a new
// plaintext under the current secret version, resetting timestamps and the
// revoked flag. Every successful refresh rotates, which is what invalidates
// the previous refresh token.
func (s *SessionStore) Rotate(ctx context.Context, sessionID int64, newRefreshToken string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := s.now().UTC()
	hash := s.ring.HashToken(newRefreshToken, s.ring.Current())
	res, err := s.db.ExecContext(ctx,
		`update sessions set refresh_token = $1, issued_at = $2, expires_at = $3, revoked = false, secret_version = $4
		 where id = $5`,
		hash, now, now.Add(ttl), s.ring.Current(), sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpired deletes sessions whose expiry is strictly in the past. Runs on
// a periodic schedule outside request handling.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from sessions where expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
