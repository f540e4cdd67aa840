package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signhub/signhub/internal/shared"
)

// ActorLoader resolves a user id into an Actor.
type ActorLoader interface {
	ActorForUser(ctx context.Context, userID int64) (Actor, error)
}

// Service resolves actors from PostgreSQL.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// ActorForUser loads the user type and every group the user belongs to, including
// the user-specific group. Retired users are denied.
func (s *Service) ActorForUser(ctx context.Context, userID int64) (Actor, error) {
	var (
		userType int
		retired  bool
		groupID  *int64
	)
	err := s.pool.QueryRow(ctx, `SELECT user_type_id, retired, group_id FROM users WHERE id = $1`, userID).
		Scan(&userType, &retired, &groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, shared.ErrAccessDenied
		}
		return Actor{}, fmt.Errorf("rbac: load user: %w", err)
	}
	if retired {
		return Actor{}, shared.ErrAccessDenied
	}

	actor := Actor{UserID: userID, UserTypeID: userType}
	if groupID != nil {
		actor.GroupIDs = append(actor.GroupIDs, *groupID)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT m.group_id FROM user_group_members m WHERE m.user_id = $1
		UNION
		SELECT g.id FROM user_groups g WHERE g.is_everyone`, userID)
	if err != nil {
		return Actor{}, fmt.Errorf("rbac: load groups: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return Actor{}, err
		}
		if !actor.InGroup(id) {
			actor.GroupIDs = append(actor.GroupIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		return Actor{}, err
	}
	return actor, nil
}

var _ ActorLoader = (*Service)(nil)
