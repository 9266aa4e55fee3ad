package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrUniqueViolation = "23505"

var (
	_ UserStore    = (*PGUserStore)(nil)
	_ ProfileStore = (*PGProfileStore)(nil)
)

// PGUserStore implements UserStore on PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Create(ctx context.Context, u *User, passwordHash string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into users (first_name, last_name, profile_id, theme, username, password, state)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id
	`, u.FirstName, u.LastName, u.ProfileID, u.Theme, u.Username, passwordHash, u.State).Scan(&id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return 0, ErrDuplicateUsername
		}
		return 0, err
	}
	return id, nil
}

func (s *PGUserStore) Find(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, first_name, last_name, profile_id, theme, username, state
		from users where id = $1
	`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, first_name, last_name, profile_id, theme, username, state, password
		from users where username = $1
	`, username)
	var u User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.ProfileID, &u.Theme,
		&u.Username, &u.State, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindWithProfile loads the account joined with its profile, decoding the
// stored permission map. A missing profile or undecodable map degrades to nil
// permissions rather than an error: authorization treats both as "none".
func (s *PGUserStore) FindWithProfile(ctx context.Context, id int64) (*UserWithProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		select u.id, u.first_name, u.last_name, u.profile_id, u.theme, u.username, u.state,
		       coalesce(p.name, ''), coalesce(p.permissions, '')
		from users u
		left join profiles p on u.profile_id = p.id
		where u.id = $1
	`, id)
	var (
		out UserWithProfile
		raw string
	)
	if err := row.Scan(&out.ID, &out.FirstName, &out.LastName, &out.ProfileID, &out.Theme,
		&out.Username, &out.State, &out.ProfileName, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	perms, err := DecodePermissions(raw)
	if err == nil {
		out.Permissions = perms
	}
	return &out, nil
}

func (s *PGUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, first_name, last_name, profile_id, theme, username, state
		from users order by id asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.ProfileID,
			&u.Theme, &u.Username, &u.State); err != nil {
			return nil, err
		}
		res = append(res, &u)
	}
	return res, rows.Err()
}

func (s *PGUserStore) Update(ctx context.Context, id int64, upd UserUpdate) (int64, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Theme != nil {
		add("theme", *upd.Theme)
	}
	if upd.PasswordHash != nil {
		add("password", *upd.PasswordHash)
	}
	if upd.ProfileID != nil {
		add("profile_id", *upd.ProfileID)
	}
	if upd.State != nil {
		add("state", *upd.State)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, id)
	query := fmt.Sprintf("update users set %s where id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return 0, ErrDuplicateUsername
		}
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGUserStore) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.ProfileID, &u.Theme,
		&u.Username, &u.State); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// PGProfileStore implements ProfileStore on PostgreSQL.
type PGProfileStore struct {
	db *sql.DB
}

func NewPGProfileStore(db *sql.DB) *PGProfileStore {
	return &PGProfileStore{db: db}
}

func (s *PGProfileStore) Create(ctx context.Context, name, permissions string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		insert into profiles (name, permissions) values ($1, $2) returning id
	`, name, permissions).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PGProfileStore) Find(ctx context.Context, id int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, permissions from profiles where id = $1
	`, id)
	var p Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Permissions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PGProfileStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name, permissions from profiles order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Permissions); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func (s *PGProfileStore) Update(ctx context.Context, id int64, upd ProfileUpdate) (int64, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if upd.Permissions != nil {
		args = append(args, *upd.Permissions)
		sets = append(sets, fmt.Sprintf("permissions = $%d", len(args)))
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, id)
	query := fmt.Sprintf("update profiles set %s where id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGProfileStore) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from profiles where id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PGProfileStore) PermissionsFor(ctx context.Context, id int64) (string, error) {
	row := s.db.QueryRowContext(ctx, `select permissions from profiles where id = $1`, id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return raw, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
