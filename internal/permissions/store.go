package permissions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signhub/signhub/internal/content"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetAllByObjectID returns a record for every user group, joined with the grant
// the group holds on the object, if any. Everyone groups sort first.
func (s *PGStore) GetAllByObjectID(ctx context.Context, class content.Class, objectID int64, opts ListOptions) ([]*Record, error) {
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.name, g.is_user_specific,
		       COALESCE(p.id, 0), COALESCE(p.view, FALSE), COALESCE(p.edit, FALSE), COALESCE(p."delete", FALSE)
		FROM user_groups g
		LEFT JOIN permissions p ON p.group_id = g.id AND p.entity = $1 AND p.object_id = $2
		WHERE ($3::text = '' OR g.name ILIKE '%' || $3::text || '%')
		  AND (NOT $4::boolean OR p.id IS NOT NULL)
		ORDER BY g.is_everyone DESC, g.name `+direction, class.String(), objectID, opts.Name, opts.SetOnly)
	if err != nil {
		return nil, fmt.Errorf("permissions: query %s %d: %w", class, objectID, err)
	}
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		rec := &Record{Class: class, ObjectID: objectID}
		if err := rows.Scan(&rec.GroupID, &rec.GroupName, &rec.IsUserSpecific, &rec.ID, &rec.View, &rec.Edit, &rec.Delete); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Save upserts a non-empty record and deletes an empty one.
func (s *PGStore) Save(ctx context.Context, rec *Record) error {
	if rec.Empty() {
		if rec.ID == 0 {
			return nil
		}
		if _, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, rec.ID); err != nil {
			return err
		}
		rec.ID = 0
		return nil
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO permissions (group_id, entity, object_id, view, edit, "delete")
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, entity, object_id)
		DO UPDATE SET view = EXCLUDED.view, edit = EXCLUDED.edit, "delete" = EXCLUDED."delete"
		RETURNING id`,
		rec.GroupID, rec.Class.String(), rec.ObjectID, rec.View, rec.Edit, rec.Delete).Scan(&rec.ID)
}

var _ Store = (*PGStore)(nil)
