package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signhub/signhub/internal/platform/db"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `
	SELECT id, user_name, email, user_type_id, COALESCE(group_id, 0),
	       is_password_change_required, retired,
	       two_factor_type_id, two_factor_secret, two_factor_recovery_codes,
	       created_at, updated_at
	FROM users`

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

// List returns every user ordered by user name.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUser+` ORDER BY user_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user      User
		factor    int16
		secret    *string
		codesJSON []byte
	)
	err := row.Scan(&user.ID, &user.UserName, &user.Email, &user.UserTypeID, &user.GroupID,
		&user.IsPasswordChangeRequired, &user.Retired,
		&factor, &secret, &codesJSON, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.TwoFactor.Type = twofactor.FactorType(factor)
	if secret != nil {
		user.TwoFactor.Secret = *secret
	}
	if len(codesJSON) > 0 {
		if err := json.Unmarshal(codesJSON, &user.TwoFactor.RecoveryCodes); err != nil {
			return nil, fmt.Errorf("users: decode recovery codes: %w", err)
		}
	}
	return &user, nil
}

// Save writes the editable columns of user. Passwords are owned by the
// credential store.
func (r *Repository) Save(ctx context.Context, user *User) error {
	codes := user.TwoFactor.RecoveryCodes
	if codes == nil {
		codes = []string{}
	}
	codesJSON, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	var secret *string
	if user.TwoFactor.Secret != "" {
		secret = &user.TwoFactor.Secret
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2,
		    user_type_id = $3,
		    is_password_change_required = $4,
		    retired = $5,
		    two_factor_type_id = $6,
		    two_factor_secret = $7,
		    two_factor_recovery_codes = $8::jsonb,
		    updated_at = NOW()
		WHERE id = $1`,
		user.ID, user.Email, user.UserTypeID, user.IsPasswordChangeRequired, user.Retired,
		int16(user.TwoFactor.Type), secret, string(codesJSON))
	if err != nil {
		return fmt.Errorf("users: save %d: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Create inserts the user together with its user-specific group and adds it
// to the named default group when that group exists.
func (r *Repository) Create(ctx context.Context, user *User, defaultGroup string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO user_groups (name, is_user_specific) VALUES ($1, TRUE) RETURNING id`,
			user.UserName).Scan(&user.GroupID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO users (user_name, email, password_hash, user_type_id, group_id, is_password_change_required)
			VALUES ($1, $2, '!', $3, $4, $5)
			RETURNING id, created_at, updated_at`,
			user.UserName, user.Email, user.UserTypeID, user.GroupID, user.IsPasswordChangeRequired).
			Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_group_members (group_id, user_id) VALUES ($1, $2)`,
			user.GroupID, user.ID); err != nil {
			return err
		}
		if defaultGroup == "" {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_group_members (group_id, user_id)
			SELECT id, $2 FROM user_groups WHERE name = $1 AND NOT is_user_specific
			ON CONFLICT DO NOTHING`, defaultGroup, user.ID)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.InvalidInput("userName", "User name is already in use")
		}
		return fmt.Errorf("users: create %q: %w", user.UserName, err)
	}
	return nil
}
