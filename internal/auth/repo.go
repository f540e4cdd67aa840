package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUserName(ctx context.Context, userName string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateRecoveryCodes(ctx context.Context, id int64, codes []string) error
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectUser = `
	SELECT id, user_name, email, password_hash, retired,
	       two_factor_type_id, two_factor_secret, two_factor_recovery_codes,
	       created_at, updated_at
	FROM users`

// FindByUserName fetches a user by login name.
func (r *PGRepository) FindByUserName(ctx context.Context, userName string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE user_name = $1`, userName))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user      User
		factor    int16
		secret    *string
		codesJSON []byte
	)
	err := row.Scan(&user.ID, &user.UserName, &user.Email, &user.PasswordHash, &user.Retired,
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
			return nil, fmt.Errorf("auth: decode recovery codes: %w", err)
		}
	}
	return &user, nil
}

// UpdatePasswordHash stores a new password hash.
func (r *PGRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateRecoveryCodes replaces the stored recovery codes.
func (r *PGRepository) UpdateRecoveryCodes(ctx context.Context, id int64, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	payload, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `UPDATE users SET two_factor_recovery_codes = $2::jsonb, updated_at = NOW() WHERE id = $1`, id, string(payload))
	return err
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`,
		id, userID,
		pgtype.Timestamptz{Time: now, Valid: true},
		pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
