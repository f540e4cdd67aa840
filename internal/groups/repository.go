package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signhub/signhub/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns groups ordered by name with their member counts.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, g.is_user_specific, g.is_everyone, g.created_at, COUNT(m.user_id)
		FROM user_groups g
		LEFT JOIN user_group_members m ON m.group_id = g.id
		WHERE ($1 = '' OR g.name ILIKE '%' || $1 || '%')
		  AND ($2 OR NOT g.is_user_specific)
		GROUP BY g.id
		ORDER BY g.name`, filters.Name, filters.IncludeUserSpecific)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.IsUserSpecific, &g.IsEveryone, &g.CreatedAt, &g.Members); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Create inserts a shared group.
func (r *Repository) Create(ctx context.Context, name string) (Group, error) {
	g := Group{Name: name}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO user_groups (name) VALUES ($1) RETURNING id, created_at`, name).
		Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Group{}, shared.InvalidInput("group", "Group name is already in use")
		}
		return Group{}, fmt.Errorf("groups: create %q: %w", name, err)
	}
	return g, nil
}

// AddMember puts a user into a shared group. Adding an existing member is a no-op.
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_group_members (group_id, user_id)
		SELECT g.id, u.id FROM user_groups g, users u
		WHERE g.id = $1 AND u.id = $2 AND NOT g.is_user_specific
		ON CONFLICT DO NOTHING`, groupID, userID)
	if err != nil {
		return fmt.Errorf("groups: add member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_group_members WHERE group_id = $1 AND user_id = $2)`,
			groupID, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotFound
		}
	}
	return nil
}

// RemoveMember takes a user out of a shared group.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_group_members m
		USING user_groups g
		WHERE m.group_id = g.id AND g.id = $1 AND m.user_id = $2 AND NOT g.is_user_specific`, groupID, userID)
	if err != nil {
		return fmt.Errorf("groups: remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
