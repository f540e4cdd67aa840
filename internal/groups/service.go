package groups

import (
	"context"
	"log/slog"
	"strings"

	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	List(ctx context.Context, filters ListFilters) ([]Group, error)
	Create(ctx context.Context, name string) (Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// Service handles group business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns groups. User-specific groups are only shown to super admins.
func (s *Service) List(ctx context.Context, actor rbac.Actor, filters ListFilters) ([]Group, error) {
	if !actor.IsSuperAdmin() {
		filters.IncludeUserSpecific = false
	}
	return s.repo.List(ctx, filters)
}

// Create adds a shared group.
func (s *Service) Create(ctx context.Context, actor rbac.Actor, name string) (Group, error) {
	if !actor.IsSuperAdmin() {
		return Group{}, shared.ErrAccessDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, shared.InvalidInput("group", "Please enter a group name")
	}
	g, err := s.repo.Create(ctx, name)
	if err != nil {
		return Group{}, err
	}
	s.logger.Info("group created", slog.Int64("group_id", g.ID), slog.String("name", g.Name))
	return g, nil
}

// AddMember adds a user to a shared group.
func (s *Service) AddMember(ctx context.Context, actor rbac.Actor, groupID, userID int64) error {
	if !actor.IsSuperAdmin() {
		return shared.ErrAccessDenied
	}
	return s.repo.AddMember(ctx, groupID, userID)
}

// RemoveMember removes a user from a shared group.
func (s *Service) RemoveMember(ctx context.Context, actor rbac.Actor, groupID, userID int64) error {
	if !actor.IsSuperAdmin() {
		return shared.ErrAccessDenied
	}
	return s.repo.RemoveMember(ctx, groupID, userID)
}
