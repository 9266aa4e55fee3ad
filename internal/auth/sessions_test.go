package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func testRing(t *testing.T) *SecretRing {
	t.Helper()
	ring, err := NewSecretRing("", `{"1":"old-secret","2":"new-secret"}`, 2)
	if err != nil {
		t.Fatalf("NewSecretRing: %v", err)
	}
	return ring
}

func testSessionStore(t *testing.T) (*SessionStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	store, err := NewSessionStore(db, testRing(t), "development")
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return store, mock, func() { db.Close() }
}

func TestSessionStoreCreate(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	hash := store.ring.HashToken("plain-token", 2)
	mock.ExpectQuery("insert into sessions").
		WithArgs(int64(7), hash, sqlmock.AnyArg(), sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := store.Create(context.Background(), 7, "plain-token", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 11 {
		t.Fatalf("unexpected session id: %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionStoreFindByTokenVersionFallback(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	now := time.Now().UTC()
	currentHash := store.ring.HashToken("plain-token", 2)
	oldHash := store.ring.HashToken("plain-token", 1)

	// The current version misses, the previous one matches.
	mock.ExpectQuery("select id, user_id, refresh_token").
		WithArgs(currentHash).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("select id, user_id, refresh_token").
		WithArgs(oldHash).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "refresh_token", "issued_at", "expires_at", "revoked", "secret_version"}).
			AddRow(int64(3), int64(7), oldHash, now, now.Add(time.Hour), false, 1))

	session, err := store.FindByToken(context.Background(), "plain-token")
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if session.ID != 3 || session.UserID != 7 || session.SecretVersion != 1 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionStoreFindByTokenNotFound(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	for range store.ring.Versions() {
		mock.ExpectQuery("select id, user_id, refresh_token").
			WithArgs(sqlmock.AnyArg()).
			WillReturnError(sql.ErrNoRows)
	}

	if _, err := store.FindByToken(context.Background(), "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStoreRevokeStopsAtFirstMatch(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	currentHash := store.ring.HashToken("plain-token", 2)
	oldHash := store.ring.HashToken("plain-token", 1)

	mock.ExpectExec("update sessions set revoked = true where refresh_token").
		WithArgs(currentHash).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("update sessions set revoked = true where refresh_token").
		WithArgs(oldHash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.Revoke(context.Background(), "plain-token")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one revoked row, got %d", affected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionStoreRevokeUnknownToken(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	for range store.ring.Versions() {
		mock.ExpectExec("update sessions set revoked = true where refresh_token").
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	affected, err := store.Revoke(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if affected != 0 {
		t.Fatalf("revoking an unknown token must be a no-op, got %d", affected)
	}
}

func TestSessionStoreRevokeAllForUser(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	mock.ExpectExec("update sessions set revoked = true where user_id").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := store.RevokeAllForUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 revoked rows, got %d", affected)
	}
}

func TestSessionStoreRotate(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	newHash := store.ring.HashToken("next-token", 2)
	mock.ExpectExec("update sessions set refresh_token").
		WithArgs(newHash, sqlmock.AnyArg(), sqlmock.AnyArg(), 2, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.Rotate(context.Background(), 3, "next-token", time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one rotated row, got %d", affected)
	}
}

func TestSessionStoreRotateLostRace(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	mock.ExpectExec("update sessions set refresh_token").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 2, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := store.Rotate(context.Background(), 3, "next-token", time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if affected != 0 {
		t.Fatalf("a lost rotation race must report zero rows, got %d", affected)
	}
}

func TestSessionStorePurgeExpired(t *testing.T) {
	store, mock, done := testSessionStore(t)
	defer done()

	mock.ExpectExec("delete from sessions where expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	purged, err := store.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 5 {
		t.Fatalf("expected 5 purged rows, got %d", purged)
	}
}

func TestNewSessionStoreProductionGuard(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	insecure, err := NewSecretRing("changeme", "", 1)
	if err != nil {
		t.Fatalf("NewSecretRing: %v", err)
	}
	if _, err := NewSessionStore(db, insecure, "production"); !errors.Is(err, ErrInsecureSecret) {
		t.Fatalf("placeholder refresh secret in production must fail, got %v", err)
	}
	if _, err := NewSessionStore(db, insecure, "development"); err != nil {
		t.Fatalf("placeholder refresh secret outside production is tolerated, got %v", err)
	}
	if _, err := NewSessionStore(db, nil, "development"); err == nil {
		t.Fatalf("nil ring must fail")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Fatalf("future expiry must not report expired")
	}
	s.ExpiresAt = now.Add(-time.Minute)
	if !s.Expired(now) {
		t.Fatalf("past expiry must report expired")
	}
}
