package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatehouse.dev/internal/auth"
	"gatehouse.dev/internal/config"
)

// Bootstrap ensures the initial admin profile and account exist. It runs
// after Up and is idempotent: existing rows are left untouched, so a changed
// SEED_ADMIN_PASSWORD never silently rewrites a live credential.
func Bootstrap(ctx context.Context, db *sql.DB, cfg config.Config) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var profileID int64
	err = tx.QueryRowContext(ctx,
		`select id from profiles where name = $1`, cfg.SeedProfileName).Scan(&profileID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRowContext(ctx,
			`insert into profiles(name, permissions) values ($1, $2) returning id`,
			cfg.SeedProfileName, cfg.SeedProfilePerms).Scan(&profileID); err != nil {
			return fmt.Errorf("seed profile: %w", err)
		}
	case err != nil:
		return err
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from users where username = $1)`, cfg.SeedAdminUsername).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		hash, err := auth.HashPassword(cfg.SeedAdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin password: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`insert into users(first_name, last_name, username, password, profile_id, theme, state)
			 values ($1, $2, $3, $4, $5, 'dark', $6)`,
			cfg.SeedAdminFirstName, cfg.SeedAdminLastName, cfg.SeedAdminUsername,
			hash, profileID, auth.UserStateActive); err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
	}

	return tx.Commit()
}
