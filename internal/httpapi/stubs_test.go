package httpapi

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"gatehouse.dev/internal/auth"
)

type stubUsers struct {
	byID        map[int64]*auth.User
	byUsername  map[string]*auth.User
	withProfile map[int64]*auth.UserWithProfile

	createID       int64
	createErr      error
	created        []*auth.User
	updates        []auth.UserUpdate
	updateErr      error
	updateAffected int64
	deleted        []int64
}

func (s *stubUsers) Create(_ context.Context, u *auth.User, _ string) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.created = append(s.created, u)
	return s.createID, nil
}

func (s *stubUsers) Find(_ context.Context, id int64) (*auth.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) FindWithProfile(_ context.Context, id int64) (*auth.UserWithProfile, error) {
	u, ok := s.withProfile[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (s *stubUsers) List(_ context.Context) ([]*auth.User, error) {
	var res []*auth.User
	for _, u := range s.byID {
		res = append(res, u)
	}
	return res, nil
}

func (s *stubUsers) Update(_ context.Context, _ int64, upd auth.UserUpdate) (int64, error) {
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	s.updates = append(s.updates, upd)
	return s.updateAffected, nil
}

func (s *stubUsers) Delete(_ context.Context, id int64) (int64, error) {
	s.deleted = append(s.deleted, id)
	return 1, nil
}

type stubProfiles struct {
	byID     map[int64]*auth.Profile
	permsFor map[int64]string

	createID int64
	updates  []auth.ProfileUpdate
	deleted  []int64
}

func (s *stubProfiles) Create(_ context.Context, name, permissions string) (int64, error) {
	if s.byID == nil {
		s.byID = make(map[int64]*auth.Profile)
	}
	s.byID[s.createID] = &auth.Profile{ID: s.createID, Name: name, Permissions: permissions}
	return s.createID, nil
}

func (s *stubProfiles) Find(_ context.Context, id int64) (*auth.Profile, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return p, nil
}

func (s *stubProfiles) List(_ context.Context) ([]*auth.Profile, error) {
	var res []*auth.Profile
	for _, p := range s.byID {
		res = append(res, p)
	}
	return res, nil
}

func (s *stubProfiles) Update(_ context.Context, _ int64, upd auth.ProfileUpdate) (int64, error) {
	s.updates = append(s.updates, upd)
	return 1, nil
}

func (s *stubProfiles) Delete(_ context.Context, id int64) (int64, error) {
	s.deleted = append(s.deleted, id)
	return 1, nil
}

func (s *stubProfiles) PermissionsFor(_ context.Context, id int64) (string, error) {
	raw, ok := s.permsFor[id]
	if !ok {
		return "", auth.ErrNotFound
	}
	return raw, nil
}

// stubCache records every interaction so tests can assert lookup order and
// invalidation.
type stubCache struct {
	entries map[string]map[string]int
	sets    []string
	cleared []int64
	gets    int
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]map[string]int)}
}

func (c *stubCache) Get(_ context.Context, key string) (map[string]int, bool) {
	c.gets++
	v, ok := c.entries[key]
	return v, ok
}

func (c *stubCache) Set(_ context.Context, key string, value map[string]int) bool {
	c.entries[key] = value
	c.sets = append(c.sets, key)
	return true
}

func (c *stubCache) ClearProfile(_ context.Context, profileID int64) bool {
	c.cleared = append(c.cleared, profileID)
	return true
}

var (
	_ auth.UserStore    = (*stubUsers)(nil)
	_ auth.ProfileStore = (*stubProfiles)(nil)
	_ PermissionCache   = (*stubCache)(nil)
)

type apiFixture struct {
	api      *API
	users    *stubUsers
	profiles *stubProfiles
	cache    *stubCache
	mock     sqlmock.Sqlmock
}

// newAPIFixture builds an API over stub stores, a stub cache, and a
// sqlmock-backed session store.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	users := &stubUsers{
		byID:        make(map[int64]*auth.User),
		byUsername:  make(map[string]*auth.User),
		withProfile: make(map[int64]*auth.UserWithProfile),
	}
	profiles := &stubProfiles{
		byID:     make(map[int64]*auth.Profile),
		permsFor: make(map[int64]string),
	}
	pc := newStubCache()

	authenticator, err := auth.NewAuthenticator(users, "test-secret", "development")
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ring, err := auth.NewSecretRing("refresh-secret", "", 1)
	if err != nil {
		t.Fatalf("NewSecretRing: %v", err)
	}
	sessions, err := auth.NewSessionStore(db, ring, "development")
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}

	api := New(Deps{
		Auth:     authenticator,
		Users:    users,
		Profiles: profiles,
		Sessions: sessions,
		Cache:    pc,
	})
	return &apiFixture{api: api, users: users, profiles: profiles, cache: pc, mock: mock}
}

// seedAccount registers an active account in all store views and returns a
// valid access token for it.
func (f *apiFixture) seedAccount(t *testing.T, id int64, username, password string, profileID int64) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &auth.User{
		ID: id, FirstName: "Test", LastName: "User", ProfileID: profileID,
		Theme: "dark", Username: username, State: auth.UserStateActive, PasswordHash: hash,
	}
	f.users.byID[id] = u
	f.users.byUsername[username] = u
	f.users.withProfile[id] = &auth.UserWithProfile{User: *u}

	token, err := f.api.auth.IssueToken(u)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}
