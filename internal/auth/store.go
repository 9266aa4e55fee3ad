package auth

import "context"

// UserStore describes account persistence as consumed by the auth subsystem.
type UserStore interface {
	Create(ctx context.Context, u *User, passwordHash string) (int64, error)
	Find(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindWithProfile(ctx context.Context, id int64) (*UserWithProfile, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id int64, upd UserUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// UserUpdate carries the fields of a partial account update; nil means
// "leave unchanged". PasswordHash must already be hashed by the caller.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	Username     *string
	Theme        *string
	PasswordHash *string
	ProfileID    *int64
	State        *int
}

// ProfileStore describes permission-profile persistence.
type ProfileStore interface {
	Create(ctx context.Context, name, permissions string) (int64, error)
	Find(ctx context.Context, id int64) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	Update(ctx context.Context, id int64, upd ProfileUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	// PermissionsFor returns the raw serialized permission map for a profile.
	PermissionsFor(ctx context.Context, id int64) (string, error)
}

// ProfileUpdate carries the fields of a partial profile update.
type ProfileUpdate struct {
	Name        *string
	Permissions *string
}
